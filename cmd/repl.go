package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jokane/mash/api"
	"github.com/jokane/mash/internal/config"
	"github.com/jokane/mash/internal/document"
	"github.com/jokane/mash/internal/ledger"
	"github.com/jokane/mash/internal/script"
	"github.com/jokane/mash/internal/stdlib"
	"github.com/jokane/mash/internal/workspace"
)

func init() {
	rootCmd.AddCommand(replCmd)
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive mashscript session with the full host library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		original, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg, err := config.Load(original)
		if err != nil {
			return err
		}
		opts, err := resolveOptions(original, cfg)
		if err != nil {
			return err
		}

		ws, err := workspace.New(original)
		if err != nil {
			return err
		}
		ws.Keep = opts.keep
		ws.ImportPath = opts.importPath
		if err := ws.Setup(); err != nil {
			return err
		}

		led, err := ledger.Open(filepath.Join(ws.Build, ledger.FileName))
		if err != nil {
			return err
		}
		defer func() { _ = led.Close() }()
		ws.Sink = led

		in := script.NewInterp()
		stdlib.Register(in, &stdlib.Host{
			WS:     ws,
			Runner: sharedRunner,
			Out:    os.Stdout,
			Versions: map[string]string{
				"mash":    api.Version,
				"mashlib": api.Version,
			},
			SpellWords: opts.spellWords,
			Shells:     led,
		})

		// A scratch frame stands in for the current frame.
		in.Globals.Set(document.FrameVar, document.NewFrame(nil, "repl", 1))

		line := liner.NewLiner()
		line.SetMultiLineMode(true)
		defer func() { _ = line.Close() }()

		for {
			l, err := line.Prompt("mash> ")
			if err == liner.ErrPromptAborted {
				continue
			}
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			if err != nil {
				return err
			}
			if l == "" {
				continue
			}
			line.AppendHistory(l)

			v, err := in.EvalResult(l, "repl", 1)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			if v != nil {
				fmt.Println(script.ToString(v))
			}
		}
	},
}
