package document

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	openDelim  = "[[["
	closeDelim = "]]]"
)

// includeRe matches an include directive at the current read position.
// Paths cannot contain whitespace or ']'.
var includeRe = regexp.MustCompile(`^\[\[\[\s*include\s+([^\s\]]+)\s*\]\]\]`)

// ParseError is a structural problem in the input document.
type ParseError struct {
	Msg  string
	File string
	Line int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("(%s, line %d): %s", e.File, e.Line, e.Msg)
}

// ExecFunc runs a frame the moment its closing delimiter is consumed.
type ExecFunc func(*Frame) error

// Parser scans a document one position at a time, building frames and
// handing each one to Exec as it closes. SearchPath lists the directories
// consulted for include directives, after the including file's own
// directory.
type Parser struct {
	SearchPath []string
	Exec       ExecFunc
}

// ParseFile parses and executes the document at path. The returned root
// frame holds the document's assembled top-level contents.
func (p *Parser) ParseFile(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return p.Parse(string(data), path)
}

// Parse parses and executes a document given as a string. name is used for
// error reporting.
func (p *Parser) Parse(src, name string) (*Frame, error) {
	root := NewFrame(nil, name, 1)
	if err := p.parseInto(root, src, name); err != nil {
		return nil, err
	}
	return root, nil
}

func (p *Parser) parseInto(enclosing *Frame, src, file string) error {
	cur := enclosing
	line := 1
	pos := 0

	for pos < len(src) {
		rest := src[pos:]

		if m := includeRe.FindStringSubmatch(rest); m != nil {
			if err := p.include(cur, m[1], file, line); err != nil {
				return err
			}
			line += strings.Count(m[0], "\n")
			pos += len(m[0])
			continue
		}

		if strings.HasPrefix(rest, openDelim) {
			cur = NewFrame(cur, file, line)
			pos += len(openDelim)
			continue
		}

		if strings.HasPrefix(rest, closeDelim) {
			if cur.Parent == nil {
				return &ParseError{
					Msg:  "closing delimiter (]]]) found at top level",
					File: file, Line: line,
				}
			}
			if p.Exec != nil {
				if err := p.Exec(cur); err != nil {
					return err
				}
			}
			cur = cur.Parent
			pos += len(closeDelim)
			continue
		}

		// Literal text: at least one character, then up to the next
		// bracket that might start a delimiter.
		n := 1
		if i := strings.IndexAny(rest[1:], "[]"); i >= 0 {
			n = i + 1
		} else {
			n = len(rest)
		}
		chunk := rest[:n]
		cur.Append(chunk)
		line += strings.Count(chunk, "\n")
		pos += n
	}

	if cur != enclosing {
		return &ParseError{
			Msg:  "frame was never closed",
			File: cur.FileName, Line: cur.StartLine,
		}
	}
	return nil
}

// include resolves name against the search path, parses and executes the
// file, and splices its top-level contents into the enclosing frame.
func (p *Parser) include(enclosing *Frame, name, fromFile string, line int) error {
	dirs := make([]string, 0, len(p.SearchPath)+1)
	if d := filepath.Dir(fromFile); d != "" {
		dirs = append(dirs, d)
	}
	dirs = append(dirs, p.SearchPath...)

	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		sub := NewFrame(nil, candidate, 1)
		if err := p.parseInto(sub, string(data), candidate); err != nil {
			return err
		}
		enclosing.Append(sub.Contents)
		return nil
	}

	return &ParseError{
		Msg:  fmt.Sprintf("include %s: not found in %s", name, strings.Join(dirs, ", ")),
		File: fromFile, Line: line,
	}
}
