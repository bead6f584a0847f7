package stdlib

import (
	"os"
	"sort"
	"strings"

	"github.com/jokane/mash/internal/script"
)

// spellCheck(words_file?) runs the frame's text through `aspell list`,
// filters the result against the accepted-words file, and fails the run
// naming every remaining misspelling. A document that updates its words
// file in response can call restart() to re-check from the top.
func (h *Host) spellCheck(c *script.Call) (script.Value, error) {
	f, err := h.frame(c)
	if err != nil {
		return nil, err
	}
	wordsFile, err := c.OptStr(0, h.SpellWords)
	if err != nil {
		return nil, err
	}

	accepted := map[string]bool{}
	if wordsFile != "" {
		data, err := os.ReadFile(wordsFile)
		if err != nil {
			return nil, c.Errorf("spell_check: %v", err)
		}
		for _, w := range strings.Fields(string(data)) {
			accepted[w] = true
		}
	}

	res, err := h.runShell("aspell list", f.Text, true)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var bad []string
	for _, w := range strings.Fields(res.Stdout) {
		if accepted[w] || seen[w] {
			continue
		}
		seen[w] = true
		bad = append(bad, w)
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, c.Errorf("spell check failed: %s", strings.Join(bad, ", "))
	}
	return nil, nil
}
