// Package workspace manages the three-directory build layout: the active
// build directory, the archive of the previous run, and the keep directory
// that receives final outputs.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	buildDirName   = ".mash"
	archiveDirName = ".mash-archive"
)

// EventSink receives cache decisions for the run ledger. Correctness never
// depends on it; a nil sink is fine.
type EventSink interface {
	Record(action, target, detail string)
}

// Workspace is the directory layout for one invocation.
type Workspace struct {
	Original   string   // invocation directory, absolute
	Build      string   // active working directory for the run
	Archive    string   // previous run's build directory
	Keep       string   // destination for final outputs; must be absolute
	ImportPath []string // directories searched by imprt

	Out  io.Writer
	Sink EventSink
}

// New derives the workspace layout from the invocation directory.
func New(original string) (*Workspace, error) {
	abs, err := filepath.Abs(original)
	if err != nil {
		return nil, fmt.Errorf("resolve invocation directory: %w", err)
	}
	return &Workspace{
		Original: abs,
		Build:    filepath.Join(abs, buildDirName),
		Archive:  filepath.Join(abs, archiveDirName),
		Keep:     abs,
		Out:      os.Stdout,
	}, nil
}

// Setup rotates the previous build into the archive, creates a fresh build
// directory, and makes it the working directory. Entries move one at a
// time, replacing same-named archive entries, so unchanged files keep their
// timestamps across runs.
func (w *Workspace) Setup() error {
	if _, err := os.Stat(w.Build); err == nil {
		if err := os.MkdirAll(w.Archive, 0o755); err != nil {
			return fmt.Errorf("create archive directory: %w", err)
		}
		entries, err := os.ReadDir(w.Build)
		if err != nil {
			return fmt.Errorf("read build directory: %w", err)
		}
		for _, e := range entries {
			src := filepath.Join(w.Build, e.Name())
			dst := filepath.Join(w.Archive, e.Name())
			if err := os.RemoveAll(dst); err != nil {
				return fmt.Errorf("clear archive entry %s: %w", e.Name(), err)
			}
			if err := os.Rename(src, dst); err != nil {
				return fmt.Errorf("archive %s: %w", e.Name(), err)
			}
		}
	}
	if err := os.MkdirAll(w.Build, 0o755); err != nil {
		return fmt.Errorf("create build directory: %w", err)
	}
	if err := os.Chdir(w.Build); err != nil {
		return fmt.Errorf("enter build directory: %w", err)
	}
	return nil
}

// BuildDir returns the build directory under an invocation directory.
func BuildDir(dir string) string { return filepath.Join(dir, buildDirName) }

// ArchiveDir returns the archive directory under an invocation directory.
func ArchiveDir(dir string) string { return filepath.Join(dir, archiveDirName) }

// Clean removes the build and archive directories under dir.
func Clean(dir string) error {
	for _, name := range []string{buildDirName, archiveDirName} {
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func (w *Workspace) logf(format string, args ...interface{}) {
	if w.Out != nil {
		fmt.Fprintf(w.Out, format+"\n", args...)
	}
}

func (w *Workspace) record(action, target, detail string) {
	if w.Sink != nil {
		w.Sink.Record(action, target, detail)
	}
}
