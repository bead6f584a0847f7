package stdlib

import (
	"path/filepath"
	"regexp"

	"github.com/jokane/mash/internal/script"
)

// atToken matches an @@path import-and-rename token.
var atToken = regexp.MustCompile(`@@([A-Za-z0-9_./+-]*)`)

// atRewrite is the default before_frame_hook: each @@path token, in both
// the commands and the text, imports the named file into the build
// directory and is replaced by the file's basename. Imports are
// idempotent, so the operation is safe across restarts.
func (h *Host) atRewrite(c *script.Call) (script.Value, error) {
	f, err := h.frame(c)
	if err != nil {
		return nil, err
	}

	var importErr error
	rewrite := func(s string) string {
		return atToken.ReplaceAllStringFunc(s, func(m string) string {
			path := atToken.FindStringSubmatch(m)[1]
			if path == "" {
				return m
			}
			if err := h.WS.Import([]string{path}, "", false); err != nil && importErr == nil {
				importErr = err
			}
			return filepath.Base(path)
		})
	}

	f.Commands = rewrite(f.Commands)
	f.Text = rewrite(f.Text)
	if importErr != nil {
		return nil, importErr
	}
	return nil, nil
}
