package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jokane/mash/api"
	"github.com/jokane/mash/internal/config"
	"github.com/jokane/mash/internal/engine"
	"github.com/jokane/mash/internal/ledger"
	"github.com/jokane/mash/internal/script"
	"github.com/jokane/mash/internal/shellexec"
	"github.com/jokane/mash/internal/stdlib"
	"github.com/jokane/mash/internal/workspace"
)

var (
	cleanFlag bool
	debugFlag bool
	keepDir   string
)

// sharedRunner memoizes executable checks across restarts of the same
// process.
var sharedRunner = shellexec.NewRunner()

func init() {
	rootCmd.Flags().BoolVarP(&cleanFlag, "clean", "c", false,
		"Wipe the build and archive directories first; with no input, just clean")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"Print the full error chain on failure")
	rootCmd.Flags().StringVar(&keepDir, "keep-dir", "",
		"Absolute directory that receives kept outputs (default: the invocation directory)")
}

var rootCmd = &cobra.Command{
	Use:           "mash [input.mash]",
	Short:         "mash: literate builds from one interleaved document",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		original, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		if cleanFlag {
			if err := workspace.Clean(original); err != nil {
				return err
			}
			if len(args) == 0 {
				return nil
			}
		}

		inputPath := ""
		stdinSrc := ""
		if len(args) == 1 {
			if inputPath, err = filepath.Abs(args[0]); err != nil {
				return fmt.Errorf("resolve input path: %w", err)
			}
		} else {
			fmt.Println("[reading from stdin]")
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			stdinSrc = string(data)
		}

		cfg, err := config.Load(original)
		if err != nil {
			return err
		}
		opts, err := resolveOptions(original, cfg)
		if err != nil {
			return err
		}

		restarts := 0
		for {
			if err := os.Chdir(original); err != nil {
				return fmt.Errorf("return to invocation directory: %w", err)
			}
			src, name := stdinSrc, "stdin"
			if inputPath != "" {
				// Re-read each pass: a restart means the input may
				// have changed on disk.
				data, err := os.ReadFile(inputPath)
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				src, name = string(data), inputPath
			}

			start := time.Now()
			rep, err := runOnce(original, src, name, opts)
			if errors.Is(err, script.ErrRestart) {
				restarts++
				continue
			}
			if err != nil {
				return err
			}
			rep.Restarts = restarts
			rep.Seconds = time.Since(start).Seconds()
			fmt.Printf("%d frames; %d+%d leaves; %.2f seconds\n",
				rep.Frames, rep.Code, rep.Text, rep.Seconds)
			return nil
		}
	},
}

// options is the fully-resolved invocation configuration.
type options struct {
	keep       string
	importPath []string
	spellWords string
}

func resolveOptions(original string, cfg *config.Config) (*options, error) {
	opts := &options{keep: original}
	if cfg.KeepDirectory != "" {
		opts.keep = cfg.KeepDirectory
	}
	if keepDir != "" {
		opts.keep = keepDir
	}
	if !filepath.IsAbs(opts.keep) {
		return nil, fmt.Errorf("keep directory %q must be an absolute path", opts.keep)
	}

	opts.importPath = []string{original}
	for _, p := range cfg.ImportPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(original, p)
		}
		opts.importPath = append(opts.importPath, p)
	}

	if cfg.SpellWords != "" {
		opts.spellWords = cfg.SpellWords
		if !filepath.IsAbs(opts.spellWords) {
			opts.spellWords = filepath.Join(original, opts.spellWords)
		}
	}
	return opts, nil
}

// runOnce sets up a fresh workspace and context and executes the document
// once. A restart request propagates out as script.ErrRestart.
func runOnce(original, src, name string, opts *options) (api.Report, error) {
	ws, err := workspace.New(original)
	if err != nil {
		return api.Report{}, err
	}
	ws.Keep = opts.keep
	ws.ImportPath = opts.importPath
	if err := ws.Setup(); err != nil {
		return api.Report{}, err
	}

	led, err := ledger.Open(filepath.Join(ws.Build, ledger.FileName))
	if err != nil {
		return api.Report{}, err
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

	eng := engine.New(in, opts.importPath)
	_, rep, err := eng.Run(src, name)
	return rep, err
}

// Execute runs the CLI and renders any error, red when stderr is a
// terminal.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		msg := fmt.Sprintf("mash: %v", err)
		if debugFlag {
			for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
				msg += fmt.Sprintf("\n  caused by: %v", e)
			}
		}
		if isatty.IsTerminal(os.Stderr.Fd()) {
			color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, msg)
		} else {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(1)
	}
}
