// Package document holds the mash frame model and the parser that carves an
// input document into a tree of frames.
package document

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jokane/mash/internal/script"
)

// FrameVar is the reserved context name bound to the current frame before
// each frame executes.
const FrameVar = "_"

// Separator splits a frame's commands from its text. The first occurrence
// wins; later ones stay in the text.
const Separator = "|||"

// Frame is a [[[ ... ]]] region of the input. Contents accumulates during
// parsing; Commands and Text are derived when the frame executes.
type Frame struct {
	Parent    *Frame
	FileName  string
	StartLine int

	Contents string
	Commands string
	Text     string
}

func NewFrame(parent *Frame, fileName string, startLine int) *Frame {
	return &Frame{Parent: parent, FileName: fileName, StartLine: startLine}
}

// Append adds literal text to the frame's contents.
func (f *Frame) Append(s string) {
	f.Contents += s
}

// Split derives Commands and Text from Contents. Everything before the
// first separator is commands, re-indented so the leftmost non-whitespace
// column is column 0; the remainder is text. Without a separator the whole
// frame is commands.
func (f *Frame) Split() {
	if i := strings.Index(f.Contents, Separator); i >= 0 {
		f.Commands = Unindent(f.Contents[:i])
		f.Text = f.Contents[i+len(Separator):]
	} else {
		f.Commands = Unindent(f.Contents)
		f.Text = ""
	}
}

// Attr exposes the frame to scripts. "content" and "text" are aliases.
func (f *Frame) Attr(name string) (script.Value, error) {
	switch name {
	case "text", "content":
		return f.Text, nil
	case "contents":
		return f.Contents, nil
	case "commands":
		return f.Commands, nil
	case "parent":
		if f.Parent == nil {
			return nil, nil
		}
		return f.Parent, nil
	case "file_name":
		return f.FileName, nil
	case "start_line":
		return int64(f.StartLine), nil
	default:
		return nil, fmt.Errorf("frame has no attribute %q", name)
	}
}

func (f *Frame) SetAttr(name string, v script.Value) error {
	s, ok := v.(string)
	if !ok && name != "parent" {
		return fmt.Errorf("frame.%s must be a string, not %s", name, script.TypeName(v))
	}
	switch name {
	case "text", "content":
		f.Text = s
	case "contents":
		f.Contents = s
	case "commands":
		f.Commands = s
	default:
		return fmt.Errorf("frame attribute %q cannot be set", name)
	}
	return nil
}

var indentRe = regexp.MustCompile(`([ \t]*)[^ \t\n]`)

// Unindent removes the tab/space prefix of the first non-whitespace
// character from the start of every line, so authors can indent embedded
// code to match the surrounding markup.
func Unindent(s string) string {
	m := indentRe.FindStringSubmatch(s)
	if m == nil || m[1] == "" {
		return s
	}
	prefix := m[1]
	s = strings.ReplaceAll(s, "\n"+prefix, "\n")
	return strings.TrimPrefix(s, prefix)
}
