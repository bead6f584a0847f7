package workspace

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Save writes contents to target in the build directory. If the archive
// holds a byte-identical copy, that copy is brought over instead, keeping
// its timestamp so downstream Recall calls still see an unchanged file.
func (w *Workspace) Save(target, contents string) error {
	buildPath := filepath.Join(w.Build, target)
	archivePath := filepath.Join(w.Archive, target)

	if old, err := os.ReadFile(archivePath); err == nil && string(old) == contents {
		if err := copyFile(archivePath, buildPath); err != nil {
			return fmt.Errorf("save %s: %w", target, err)
		}
		w.logf("Using %s from previous build.", target)
		w.record("reused", target, "")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(buildPath), 0o755); err != nil {
		return fmt.Errorf("save %s: %w", target, err)
	}
	if err := os.WriteFile(buildPath, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("save %s: %w", target, err)
	}
	w.logf("Writing %d bytes to %s.", len(contents), target)
	w.record("saved", target, fmt.Sprintf("%d bytes", len(contents)))
	return nil
}

// Recall copies target from the archive if it exists there and is at least
// as new as every listed source in the build directory. A missing source is
// fatal. With no sources, the archive entry's existence decides.
func (w *Workspace) Recall(target string, sources []string) (bool, error) {
	sources = dedupe(sources)

	archivePath := filepath.Join(w.Archive, target)
	st, err := os.Stat(archivePath)
	if err != nil {
		w.logf("%s is not available.", target)
		w.record("recall-miss", target, "not in archive")
		return false, nil
	}

	for _, source := range sources {
		ss, err := os.Stat(filepath.Join(w.Build, source))
		if err != nil {
			return false, fmt.Errorf(
				"recall %s: missing source %s (dependencies: %s)",
				target, source, strings.Join(sources, ", "))
		}
		if ss.ModTime().After(st.ModTime()) {
			w.logf("%s is newer than %s.", source, target)
			w.record("recall-miss", target, source+" is newer")
			return false, nil
		}
	}

	buildPath := filepath.Join(w.Build, target)
	if st.IsDir() {
		if err := os.RemoveAll(buildPath); err != nil {
			return false, fmt.Errorf("recall %s: %w", target, err)
		}
		if err := copyDir(archivePath, buildPath); err != nil {
			return false, fmt.Errorf("recall %s: %w", target, err)
		}
	} else {
		if err := copyFile(archivePath, buildPath); err != nil {
			return false, fmt.Errorf("recall %s: %w", target, err)
		}
	}
	w.logf("%s is available from previous build.", target)
	w.record("recall-hit", target, "")
	return true, nil
}

// KeepFile copies src from the build directory to target under the keep
// directory, which must be absolute. Directories replace any existing
// target.
func (w *Workspace) KeepFile(src, target string) error {
	if !filepath.IsAbs(w.Keep) {
		return fmt.Errorf("keep directory %q must be an absolute path", w.Keep)
	}
	srcPath := filepath.Join(w.Build, src)
	dstPath := filepath.Join(w.Keep, target)

	st, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("don't know how to keep %s, which is neither file nor directory", src)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("keep %s: %w", src, err)
	}
	if st.IsDir() {
		if err := os.RemoveAll(dstPath); err != nil {
			return fmt.Errorf("keep %s: %w", src, err)
		}
		if err := copyDir(srcPath, dstPath); err != nil {
			return fmt.Errorf("keep %s: %w", src, err)
		}
	} else {
		if err := copyFile(srcPath, dstPath); err != nil {
			return fmt.Errorf("keep %s: %w", src, err)
		}
	}
	w.logf("Keeping %s.", target)
	w.record("kept", target, "")
	return nil
}

// Import copies each named file from the import search path into the build
// directory. Zero names is a no-op. target renames the copy and is an
// error with more than one name. An existing byte-identical copy is left
// alone. Misses are fatal unless conditional.
func (w *Workspace) Import(names []string, target string, conditional bool) error {
	if len(names) == 0 {
		return nil
	}
	if target != "" && len(names) != 1 {
		return fmt.Errorf("import: target given with %d names", len(names))
	}

	for _, name := range names {
		found := ""
		for _, dir := range w.ImportPath {
			candidate := filepath.Join(dir, name)
			if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
				found = candidate
				break
			}
		}
		if found == "" {
			if conditional {
				continue
			}
			return fmt.Errorf("import %s: not found in %s",
				name, strings.Join(w.ImportPath, ", "))
		}

		destName := filepath.Base(name)
		if target != "" {
			destName = target
		}
		destPath := filepath.Join(w.Build, destName)

		if existing, err := os.ReadFile(destPath); err == nil {
			fresh, err := os.ReadFile(found)
			if err != nil {
				return fmt.Errorf("import %s: %w", name, err)
			}
			if bytes.Equal(existing, fresh) {
				continue
			}
		}
		if err := copyFile(found, destPath); err != nil {
			return fmt.Errorf("import %s: %w", name, err)
		}
		w.logf("Importing %s.", name)
		w.record("imported", destName, found)
	}
	return nil
}

// dedupe drops repeated entries, keeping first occurrences in order.
func dedupe(items []string) []string {
	seen := map[string]bool{}
	out := items[:0:0]
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

// copyFile copies a regular file, preserving its mode and mtime.
func copyFile(src, dst string) error {
	st, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, st.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, st.ModTime(), st.ModTime())
}

// copyDir copies a directory tree, preserving file modes and mtimes.
// Directory mtimes are restored after the contents are in place.
func copyDir(src, dst string) error {
	type dirTime struct {
		path string
		info fs.FileInfo
	}
	var dirs []dirTime

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(target, info.Mode().Perm()); err != nil {
				return err
			}
			dirs = append(dirs, dirTime{path: target, info: info})
			return nil
		}
		return copyFile(path, target)
	})
	if err != nil {
		return err
	}

	// Deepest first, so parent timestamps are not disturbed afterwards.
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i].path, string(filepath.Separator)) >
			strings.Count(dirs[j].path, string(filepath.Separator))
	})
	for _, d := range dirs {
		if err := os.Chtimes(d.path, d.info.ModTime(), d.info.ModTime()); err != nil {
			return err
		}
	}
	return nil
}
