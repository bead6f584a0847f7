package main

import "github.com/jokane/mash/cmd"

func main() {
	cmd.Execute()
}
