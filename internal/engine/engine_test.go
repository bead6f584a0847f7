package engine

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jokane/mash/internal/document"
	"github.com/jokane/mash/internal/script"
)

// newEngine builds an engine with just enough context for the tests: a
// print builtin writing to a buffer and a push builtin for promotion.
func newEngine() (*Engine, *bytes.Buffer) {
	in := script.NewInterp()
	out := &bytes.Buffer{}
	in.Globals.Set("print", &script.Builtin{BName: "print", Fn: func(c *script.Call) (script.Value, error) {
		parts := make([]string, 0, len(c.Args))
		for _, a := range c.Args {
			parts = append(parts, script.ToString(a))
		}
		fmt.Fprintln(out, strings.Join(parts, " "))
		return nil, nil
	}})
	in.Globals.Set("push", &script.Builtin{BName: "push", Fn: func(c *script.Call) (script.Value, error) {
		f := c.Interp.Globals.Get(document.FrameVar).(*document.Frame)
		text := f.Text
		if len(c.Args) > 0 {
			text = c.Args[0].(string)
		}
		if f.Parent == nil {
			return nil, c.Errorf("push: the root frame has no parent")
		}
		f.Parent.Append(text)
		return nil, nil
	}})
	return New(in, nil), out
}

func TestRunMinimal(t *testing.T) {
	eng, out := newEngine()
	root, rep, err := eng.Run("[[[ print(\"hi\") ]]]\n", "x.mash")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out.String())
	assert.Equal(t, "\n", root.Contents)
	assert.Equal(t, 2, rep.Frames)
	assert.Equal(t, 1, rep.Code)
}

func TestRunPushPromotion(t *testing.T) {
	eng, _ := newEngine()
	root, _, err := eng.Run(`A[[[ push("B") ]]]C`, "x.mash")
	require.NoError(t, err)
	assert.Equal(t, "ABC", root.Contents)
}

func TestRunChildInvisibleWithoutPush(t *testing.T) {
	eng, _ := newEngine()
	root, _, err := eng.Run("A[[[ x = 1 ||| secret ]]]C", "x.mash")
	require.NoError(t, err)
	assert.Equal(t, "AC", root.Contents)
	assert.NotContains(t, root.Contents, "secret")
}

func TestRunExecutionOrder(t *testing.T) {
	eng, out := newEngine()
	// The inner frame closes, and so runs, before the outer one.
	_, _, err := eng.Run(`[[[ print("outer") ||| [[[ print("inner") ]]] ]]]`, "x.mash")
	require.NoError(t, err)
	assert.Equal(t, "inner\nouter\n", out.String())
}

func TestRunDefinitionsPersist(t *testing.T) {
	eng, out := newEngine()
	src := `[[[ greeting = "hello" ]]] [[[ print(greeting) ]]]`
	_, _, err := eng.Run(src, "x.mash")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.String())
}

func TestRunFunctionsPersist(t *testing.T) {
	eng, out := newEngine()
	src := `[[[
fun shout(s)
  print(s + "!")
end
]]][[[ shout("go") ]]]`
	_, _, err := eng.Run(src, "x.mash")
	require.NoError(t, err)
	assert.Equal(t, "go!\n", out.String())
}

func TestRunIndentedCommands(t *testing.T) {
	eng, out := newEngine()
	// Indented commands behave like unindented ones.
	src := "[[[\n    x = 2\n    print(x * x)\n]]]"
	_, _, err := eng.Run(src, "x.mash")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out.String())
}

func TestRunErrorLineFidelity(t *testing.T) {
	eng, _ := newEngine()
	// The bad call sits on document line 4.
	src := "text\n[[[\nok = 1\nboom()\n]]]"
	_, _, err := eng.Run(src, "doc.mash")
	var serr *script.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "doc.mash", serr.File)
	assert.Equal(t, 4, serr.Line)
}

func TestRunHooks(t *testing.T) {
	eng, out := newEngine()
	in := eng.Interp

	var hooked []*document.Frame
	in.Globals.Set("before_frame_hook", &script.Builtin{
		BName: "before_frame_hook",
		Fn: func(c *script.Call) (script.Value, error) {
			f := c.Args[0].(*document.Frame)
			hooked = append(hooked, f)
			// The hook may rewrite commands before they run.
			f.Commands = strings.ReplaceAll(f.Commands, "PLACEHOLDER", `"patched"`)
			return nil, nil
		},
	})
	afterRan := 0
	in.Globals.Set("after_frame_hook", &script.Builtin{
		BName: "after_frame_hook",
		Fn: func(c *script.Call) (script.Value, error) {
			afterRan++
			return nil, nil
		},
	})

	_, _, err := eng.Run("[[[ print(PLACEHOLDER) ]]]", "x.mash")
	require.NoError(t, err)
	assert.Equal(t, "patched\n", out.String())
	assert.Len(t, hooked, 1)
	assert.Equal(t, 1, afterRan)
}

func TestRunBeforeCodeHookFallback(t *testing.T) {
	eng, _ := newEngine()
	ran := 0
	eng.Interp.Globals.Set("before_code_hook", &script.Builtin{
		BName: "before_code_hook",
		Fn: func(c *script.Call) (script.Value, error) {
			ran++
			return nil, nil
		},
	})
	_, _, err := eng.Run("[[[ x = 1 ]]]", "x.mash")
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
}

func TestRunRestartPropagates(t *testing.T) {
	eng, _ := newEngine()
	eng.Interp.Globals.Set("restart", &script.Builtin{BName: "restart",
		Fn: func(c *script.Call) (script.Value, error) {
			return nil, script.ErrRestart
		}})
	_, _, err := eng.Run("[[[ restart() ]]]", "x.mash")
	assert.ErrorIs(t, err, script.ErrRestart)
}

func TestRunParseErrorSurfaces(t *testing.T) {
	eng, _ := newEngine()
	_, _, err := eng.Run("]]]", "x.mash")
	var perr *document.ParseError
	assert.ErrorAs(t, err, &perr)
}
