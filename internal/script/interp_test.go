package script

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalValue(t *testing.T, in *Interp, src string) Value {
	t.Helper()
	v, err := in.EvalResult(src, "test", 1)
	require.NoError(t, err)
	return v
}

func TestInterpArithmetic(t *testing.T) {
	in := NewInterp()
	assert.Equal(t, int64(7), evalValue(t, in, "1 + 2 * 3"))
	assert.Equal(t, int64(2), evalValue(t, in, "7 / 3"))
	assert.Equal(t, int64(1), evalValue(t, in, "7 % 3"))
	assert.Equal(t, 3.5, evalValue(t, in, "7 / 2.0"))
	assert.Equal(t, int64(-4), evalValue(t, in, "-4"))
	assert.Equal(t, "ab", evalValue(t, in, `"a" + "b"`))
	assert.Equal(t, true, evalValue(t, in, "2 < 3 and not (1 == 2)"))
	assert.Equal(t, true, evalValue(t, in, `"a" != "b"`))

	_, err := in.EvalResult(`1 + "a"`, "test", 1)
	assert.Error(t, err)
	_, err = in.EvalResult("1 / 0", "test", 1)
	assert.Error(t, err)
}

func TestInterpNamesPersist(t *testing.T) {
	// Definitions from one chunk are visible to later chunks; that is the
	// whole point of the shared context.
	in := NewInterp()
	require.NoError(t, in.Eval("x = 41", "a", 1))
	assert.Equal(t, int64(42), evalValue(t, in, "x + 1"))

	_, err := in.EvalResult("undefined_name", "b", 1)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Msg, "undefined_name")
}

func TestInterpControlFlow(t *testing.T) {
	in := NewInterp()
	v := evalValue(t, in, `
total = 0
for x in [1, 2, 3, 4] do
  if x % 2 == 0 then
    total = total + x
  end
end
total`)
	assert.Equal(t, int64(6), v)

	v = evalValue(t, in, `
n = 0
while true do
  n = n + 1
  if n >= 5 then break end
end
n`)
	assert.Equal(t, int64(5), v)
}

func TestInterpFunctions(t *testing.T) {
	in := NewInterp()
	v := evalValue(t, in, `
fun add(a, b)
  return a + b
end
add(2, 3)`)
	assert.Equal(t, int64(5), v)

	// Named arguments bind by parameter name.
	assert.Equal(t, int64(5), evalValue(t, in, "add(b=3, a=2)"))

	// Unknown parameter names fail.
	_, err := in.EvalResult("add(c=1)", "test", 1)
	assert.Error(t, err)

	// Functions close over their defining scope.
	v = evalValue(t, in, `
base = 10
fun bump(n)
  return base + n
end
bump(1)`)
	assert.Equal(t, int64(11), v)
}

func TestInterpLists(t *testing.T) {
	in := NewInterp()
	assert.Equal(t, int64(2), evalValue(t, in, "[1, 2, 3][1]"))
	assert.Equal(t,
		[]Value{int64(1), int64(2), int64(3)},
		evalValue(t, in, "[1] + [2, 3]"))

	_, err := in.EvalResult("[1][5]", "test", 1)
	assert.Error(t, err)
}

func TestInterpBuiltins(t *testing.T) {
	in := NewInterp()
	var got []Value
	in.Globals.Set("grab", &Builtin{BName: "grab", Fn: func(c *Call) (Value, error) {
		got = c.Args
		return int64(len(c.Args)), nil
	}})
	assert.Equal(t, int64(2), evalValue(t, in, `grab("a", 1)`))
	assert.Equal(t, []Value{"a", int64(1)}, got)
}

type fakeObj struct {
	text string
}

func (o *fakeObj) Attr(name string) (Value, error) {
	if name == "text" {
		return o.text, nil
	}
	return nil, fmt.Errorf("no attribute %q", name)
}

func (o *fakeObj) SetAttr(name string, v Value) error {
	if name == "text" {
		o.text = v.(string)
		return nil
	}
	return fmt.Errorf("no attribute %q", name)
}

func TestInterpAttrs(t *testing.T) {
	in := NewInterp()
	obj := &fakeObj{text: "before"}
	in.Globals.Set("_", obj)

	assert.Equal(t, "before", evalValue(t, in, "_.text"))
	require.NoError(t, in.Eval(`_.text = _.text + "!"`, "test", 1))
	assert.Equal(t, "before!", obj.text)

	_, err := in.EvalResult("_.bogus", "test", 1)
	assert.Error(t, err)
}

func TestInterpErrorLines(t *testing.T) {
	in := NewInterp()

	// The chunk starts at document line 5; the failure is two lines in.
	err := in.Eval("x = 1\nx = 1\ny = boom()", "doc.mash", 5)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "doc.mash", serr.File)
	assert.Equal(t, 7, serr.Line)
	assert.Contains(t, serr.Error(), "doc.mash, line 7")
}

func TestInterpRestartPassesThrough(t *testing.T) {
	in := NewInterp()
	in.Globals.Set("restart", &Builtin{BName: "restart", Fn: func(c *Call) (Value, error) {
		return nil, ErrRestart
	}})
	err := in.Eval("restart()", "doc.mash", 1)
	assert.ErrorIs(t, err, ErrRestart)
}

func TestInterpStrayControl(t *testing.T) {
	in := NewInterp()
	err := in.Eval("break", "t", 1)
	assert.Error(t, err)
	err = in.Eval("return 1", "t", 1)
	assert.Error(t, err)

	var serr *Error
	require.ErrorAs(t, in.Eval("continue", "t", 1), &serr)
}

func TestInterpShortCircuit(t *testing.T) {
	in := NewInterp()
	// The right side would fail if evaluated.
	assert.Equal(t, false, Truth(evalValue(t, in, "false and boom()")))
	v := evalValue(t, in, `"left" or boom()`)
	assert.Equal(t, "left", v)
}

func TestInterpBindLookup(t *testing.T) {
	in := NewInterp()
	in.Bind("k", "v")
	v, ok := in.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	_, ok = in.Lookup("missing")
	assert.False(t, ok)

	// A plain (wrapped) error from a builtin is reported as a script
	// error at the line of the call.
	in.Bind("fail", &Builtin{BName: "fail", Fn: func(c *Call) (Value, error) {
		return nil, fmt.Errorf("wrapped: %w", errors.New("inner"))
	}})
	err := in.Eval("fail()", "t", 3)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 3, serr.Line)
}
