// Package engine drives document execution: it wires the parser to the
// embedded script runtime, installs the per-frame context, and surfaces
// errors with their document origin.
package engine

import (
	"errors"
	"fmt"

	"github.com/jokane/mash/api"
	"github.com/jokane/mash/internal/document"
	"github.com/jokane/mash/internal/script"
)

var _ api.Runtime = (*script.Interp)(nil)

// Engine executes one document against one shared context. A fresh Engine
// is built for every run, including after a restart.
type Engine struct {
	Interp *script.Interp
	Parser *document.Parser

	frames int
	code   int
	text   int
}

// New builds an engine around an interpreter whose global scope already
// holds the host library. searchPath is consulted by include directives.
func New(in *script.Interp, searchPath []string) *Engine {
	e := &Engine{Interp: in}
	e.Parser = &document.Parser{SearchPath: searchPath, Exec: e.execFrame}
	return e
}

// Run parses and executes a document given as a string, returning the
// root frame and the run's counts.
func (e *Engine) Run(src, name string) (*document.Frame, api.Report, error) {
	root, err := e.Parser.Parse(src, name)
	if err != nil {
		return nil, e.report(), err
	}
	e.countRoot(root)
	return root, e.report(), nil
}

// RunFile is Run over a file on disk.
func (e *Engine) RunFile(path string) (*document.Frame, api.Report, error) {
	root, err := e.Parser.ParseFile(path)
	if err != nil {
		return nil, e.report(), err
	}
	e.countRoot(root)
	return root, e.report(), nil
}

func (e *Engine) report() api.Report {
	return api.Report{Frames: e.frames, Code: e.code, Text: e.text}
}

func (e *Engine) countRoot(root *document.Frame) {
	// The root is all text; it never executes.
	e.frames++
	if root.Contents != "" {
		e.text++
	}
}

// execFrame runs one frame the moment its closing delimiter is consumed:
// split commands from text, normalize indentation, bind the frame into the
// context, run the hooks around the script itself.
func (e *Engine) execFrame(f *document.Frame) error {
	f.Split()

	e.frames++
	if f.Commands != "" {
		e.code++
	}
	if f.Text != "" {
		e.text++
	}

	g := e.Interp.Globals
	g.Set(document.FrameVar, f)
	defer func() {
		if f.Parent != nil {
			g.Set(document.FrameVar, f.Parent)
		}
	}()

	if err := e.callHook(f, "before_frame_hook", "before_code_hook"); err != nil {
		return err
	}

	if err := e.Interp.Eval(f.Commands, f.FileName, f.StartLine); err != nil {
		if errors.Is(err, script.ErrRestart) {
			return err
		}
		var se *script.Error
		if errors.As(err, &se) {
			return err
		}
		return fmt.Errorf("(%s, line %d): %w", f.FileName, f.StartLine, err)
	}

	return e.callHook(f, "after_frame_hook")
}

// callHook invokes the first of the given context names that is bound,
// passing the frame.
func (e *Engine) callHook(f *document.Frame, names ...string) error {
	g := e.Interp.Globals
	for _, name := range names {
		hook := g.Get(name)
		if hook == nil {
			continue
		}
		if _, err := e.Interp.Call(hook, []script.Value{f}, f.FileName, f.StartLine); err != nil {
			return err
		}
		return nil
	}
	return nil
}
