// Package stdlib registers the standard host operations into the document
// context: the cache ops, the shell bridge, and the frame helpers that mash
// documents script against.
package stdlib

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jokane/mash/internal/document"
	"github.com/jokane/mash/internal/script"
	"github.com/jokane/mash/internal/shellexec"
	"github.com/jokane/mash/internal/workspace"
)

// ShellSink receives shell invocation records for the run ledger.
type ShellSink interface {
	RecordShell(cmd string, returnCode int, wall time.Duration, userTime, sysTime float64)
}

// Host carries the collaborators the standard library operates on.
type Host struct {
	WS     *workspace.Workspace
	Runner *shellexec.Runner
	Out    io.Writer

	// Versions maps component names to their available versions for
	// require_versions.
	Versions map[string]string

	// SpellWords optionally names a file of extra words spell_check
	// accepts.
	SpellWords string

	Shells ShellSink
}

// Register installs every host operation and context variable into the
// interpreter's global scope.
func Register(in *script.Interp, h *Host) {
	g := in.Globals
	reg := func(name string, fn func(*script.Call) (script.Value, error)) {
		g.Set(name, &script.Builtin{BName: name, Fn: fn})
	}

	reg("print", h.print)
	reg("save", h.save)
	reg("recall", h.recall)
	reg("keep", h.keep)
	reg("imprt", h.imprt)
	reg("shell", h.shell)
	reg("shell_filter", h.shellFilter)
	reg("push", h.push)
	reg("read", h.read)
	reg("anon", h.anon)
	reg("unindent", h.unindent)
	reg("strip", h.strip)
	reg("ext", h.ext)
	reg("len", h.length)
	reg("str", h.str)
	reg("restart", h.restart)
	reg("spell_check", h.spellCheck)
	reg("require_versions", h.requireVersions)

	g.Set("before_frame_hook", &script.Builtin{BName: "before_frame_hook", Fn: h.atRewrite})

	importDirs := make([]script.Value, 0, len(h.WS.ImportPath))
	for _, d := range h.WS.ImportPath {
		importDirs = append(importDirs, d)
	}
	g.Set("keep_directory", h.WS.Keep)
	g.Set("build_directory", h.WS.Build)
	g.Set("archive_directory", h.WS.Archive)
	g.Set("import_search_directories", importDirs)
}

// frame returns the frame currently bound under "_".
func (h *Host) frame(c *script.Call) (*document.Frame, error) {
	v := c.Interp.Globals.Get(document.FrameVar)
	f, ok := v.(*document.Frame)
	if !ok {
		return nil, c.Errorf("no current frame")
	}
	return f, nil
}

func (h *Host) print(c *script.Call) (script.Value, error) {
	parts := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		parts = append(parts, script.ToString(a))
	}
	fmt.Fprintln(h.Out, strings.Join(parts, " "))
	return nil, nil
}

// save(target, contents?) writes contents (default: the frame's text) into
// the build directory, reusing a byte-identical archive copy when possible.
func (h *Host) save(c *script.Call) (script.Value, error) {
	target, err := c.Str(0)
	if err != nil {
		return nil, err
	}
	contents := ""
	if len(c.Args) > 1 {
		if contents, err = c.Str(1); err != nil {
			return nil, err
		}
	} else {
		f, err := h.frame(c)
		if err != nil {
			return nil, err
		}
		contents = f.Text
	}
	return nil, h.WS.Save(target, contents)
}

// recall(target, *sources) copies target from the archive when it dominates
// every source's mtime. Sources may be strings or lists of strings.
func (h *Host) recall(c *script.Call) (script.Value, error) {
	target, err := c.Str(0)
	if err != nil {
		return nil, err
	}
	var sources []string
	for i, a := range c.Args[1:] {
		switch v := a.(type) {
		case string:
			sources = append(sources, v)
		case []script.Value:
			for _, e := range v {
				s, ok := e.(string)
				if !ok {
					return nil, c.Errorf("recall: source list must hold strings")
				}
				sources = append(sources, s)
			}
		default:
			return nil, c.Errorf("recall: argument %d: expected string, got %s",
				i+2, script.TypeName(a))
		}
	}
	return h.WS.Recall(target, sources)
}

// keep(src, target?=src) copies a build product to the keep directory.
func (h *Host) keep(c *script.Call) (script.Value, error) {
	src, err := c.Str(0)
	if err != nil {
		return nil, err
	}
	target, err := c.OptStr(1, src)
	if err != nil {
		return nil, err
	}
	return nil, h.WS.KeepFile(src, target)
}

// imprt(*names, target?, conditional=false) copies files from the import
// search path into the build directory.
func (h *Host) imprt(c *script.Call) (script.Value, error) {
	names := make([]string, 0, len(c.Args))
	for i := range c.Args {
		s, err := c.Str(i)
		if err != nil {
			return nil, err
		}
		names = append(names, s)
	}
	target, err := c.NamedStr("target", "")
	if err != nil {
		return nil, err
	}
	conditional, err := c.NamedBool("conditional", false)
	if err != nil {
		return nil, err
	}
	return nil, h.WS.Import(names, target, conditional)
}

// shell(cmd, stdin?, check=true) runs a command through the system shell.
func (h *Host) shell(c *script.Call) (script.Value, error) {
	cmd, err := c.Str(0)
	if err != nil {
		return nil, err
	}
	stdin, err := c.OptStr(1, "")
	if err != nil {
		return nil, err
	}
	if stdin == "" {
		if stdin, err = c.NamedStr("stdin", stdin); err != nil {
			return nil, err
		}
	}
	check, err := c.NamedBool("check", true)
	if err != nil {
		return nil, err
	}
	return h.runShell(cmd, stdin, check)
}

func (h *Host) runShell(cmd, stdin string, check bool) (*shellexec.Result, error) {
	fmt.Fprintf(h.Out, "(shell) %s\n", cmd)
	start := time.Now()
	res, err := h.Runner.Run(cmd, stdin, check)
	if res != nil && h.Shells != nil {
		h.Shells.RecordShell(cmd, res.ReturnCode, time.Since(start), res.UserTime, res.SysTime)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// shell_filter(cmd) pipes the frame's text through cmd, replacing the text
// with the command's stdout.
func (h *Host) shellFilter(c *script.Call) (script.Value, error) {
	cmd, err := c.Str(0)
	if err != nil {
		return nil, err
	}
	f, err := h.frame(c)
	if err != nil {
		return nil, err
	}
	res, err := h.runShell(cmd, f.Text, true)
	if err != nil {
		return nil, err
	}
	f.Text = res.Stdout
	return nil, nil
}

// push(text?) injects text (default: the frame's text) into the parent
// frame at this position.
func (h *Host) push(c *script.Call) (script.Value, error) {
	f, err := h.frame(c)
	if err != nil {
		return nil, err
	}
	text, err := c.OptStr(0, f.Text)
	if err != nil {
		return nil, err
	}
	if f.Parent == nil {
		return nil, c.Errorf("push: the root frame has no parent")
	}
	f.Parent.Append(text)
	return nil, nil
}

// read(fname) appends a file's contents to the frame's text.
func (h *Host) read(c *script.Call) (script.Value, error) {
	fname, err := c.Str(0)
	if err != nil {
		return nil, err
	}
	f, err := h.frame(c)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(fname) {
		fname = filepath.Join(h.WS.Build, fname)
	}
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, c.Errorf("read: %v", err)
	}
	f.Text += string(data)
	return nil, nil
}

// anon(content?) names content (default: the frame's text) by the first 7
// hex characters of its SHA-1.
func (h *Host) anon(c *script.Call) (script.Value, error) {
	content := ""
	if len(c.Args) > 0 {
		var err error
		if content, err = c.Str(0); err != nil {
			return nil, err
		}
	} else {
		f, err := h.frame(c)
		if err != nil {
			return nil, err
		}
		content = f.Text
	}
	sum := sha1.Sum([]byte(content))
	return fmt.Sprintf("%x", sum)[:7], nil
}

func (h *Host) unindent(c *script.Call) (script.Value, error) {
	f, err := h.frame(c)
	if err != nil {
		return nil, err
	}
	f.Text = document.Unindent(f.Text)
	return nil, nil
}

func (h *Host) strip(c *script.Call) (script.Value, error) {
	f, err := h.frame(c)
	if err != nil {
		return nil, err
	}
	f.Text = strings.TrimSpace(f.Text)
	return nil, nil
}

// ext(fname, ext) replaces fname's extension.
func (h *Host) ext(c *script.Call) (script.Value, error) {
	fname, err := c.Str(0)
	if err != nil {
		return nil, err
	}
	newExt, err := c.Str(1)
	if err != nil {
		return nil, err
	}
	if newExt != "" && !strings.HasPrefix(newExt, ".") {
		newExt = "." + newExt
	}
	return strings.TrimSuffix(fname, filepath.Ext(fname)) + newExt, nil
}

func (h *Host) length(c *script.Call) (script.Value, error) {
	if err := c.CheckArity("len", 1, 1); err != nil {
		return nil, err
	}
	switch v := c.Args[0].(type) {
	case string:
		return int64(len(v)), nil
	case []script.Value:
		return int64(len(v)), nil
	default:
		return nil, c.Errorf("len: expected string or list, got %s", script.TypeName(v))
	}
}

func (h *Host) str(c *script.Call) (script.Value, error) {
	if err := c.CheckArity("str", 1, 1); err != nil {
		return nil, err
	}
	return script.ToString(c.Args[0]), nil
}

// restart() abandons this run and re-enters from the top of the document.
func (h *Host) restart(c *script.Call) (script.Value, error) {
	return nil, script.ErrRestart
}
