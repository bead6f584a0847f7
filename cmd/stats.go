package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/jokane/mash/internal/ledger"
	"github.com/jokane/mash/internal/workspace"
)

var statsJSON bool

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Emit the ledger as JSON")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the previous run's cache decisions and shell usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		path := filepath.Join(workspace.BuildDir(cwd), ledger.FileName)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("no ledger at %s; run mash here first", path)
		}

		events, err := ledger.Read(path)
		if err != nil {
			return err
		}

		if statsJSON {
			fmt.Println(oj.JSON(events, 2))
			return nil
		}

		if len(events) == 0 {
			fmt.Println("No events recorded.")
			return nil
		}
		var user, sys float64
		var shells int
		for _, e := range events {
			detail := e.Detail
			if e.Action == "shell" {
				shells++
				user += e.UserTime
				sys += e.SysTime
				detail = fmt.Sprintf("%s, %dms, %.2fu %.2fs", e.Detail, e.WallMS, e.UserTime, e.SysTime)
			}
			fmt.Printf("%-12s %-40s %s\n", e.Action, e.Target, detail)
		}
		fmt.Printf("%d events; %d shell commands; %.2fu %.2fs child CPU\n",
			len(events), shells, user, sys)
		return nil
	},
}
