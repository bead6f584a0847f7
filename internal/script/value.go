package script

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Value is any mashscript runtime value: nil, bool, int64, float64, string,
// []Value, a Callable, or a host object implementing Attrs.
type Value interface{}

// Attrs is implemented by host objects whose attributes scripts may read and
// write with dot syntax (frames, shell results).
type Attrs interface {
	Attr(name string) (Value, error)
	SetAttr(name string, v Value) error
}

// Callable is anything scripts can invoke.
type Callable interface {
	Name() string
	Invoke(c *Call) (Value, error)
}

// Call carries the arguments of a single invocation, plus the origin of the
// call site for error reporting.
type Call struct {
	Interp *Interp
	Args   []Value
	Named  map[string]Value
	File   string
	Line   int
}

// Errorf builds a runtime error located at the call site.
func (c *Call) Errorf(format string, args ...interface{}) error {
	return &Error{Msg: fmt.Sprintf(format, args...), File: c.File, Line: c.Line}
}

// CheckArity fails unless min <= len(Args) <= max. max < 0 means unbounded.
func (c *Call) CheckArity(name string, min, max int) error {
	n := len(c.Args)
	if n < min || (max >= 0 && n > max) {
		return c.Errorf("%s: expected between %d and %d arguments, got %d", name, min, max, n)
	}
	return nil
}

// Str returns positional argument i as a string.
func (c *Call) Str(i int) (string, error) {
	if i >= len(c.Args) {
		return "", c.Errorf("missing argument %d", i+1)
	}
	s, ok := c.Args[i].(string)
	if !ok {
		return "", c.Errorf("argument %d: expected string, got %s", i+1, TypeName(c.Args[i]))
	}
	return s, nil
}

// OptStr returns positional argument i as a string, or def if absent.
func (c *Call) OptStr(i int, def string) (string, error) {
	if i >= len(c.Args) {
		return def, nil
	}
	return c.Str(i)
}

// NamedStr returns the named argument as a string, or def if absent.
func (c *Call) NamedStr(name, def string) (string, error) {
	v, ok := c.Named[name]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", c.Errorf("%s=: expected string, got %s", name, TypeName(v))
	}
	return s, nil
}

// NamedBool returns the named argument as a bool, or def if absent.
func (c *Call) NamedBool(name string, def bool) (bool, error) {
	v, ok := c.Named[name]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, c.Errorf("%s=: expected bool, got %s", name, TypeName(v))
	}
	return b, nil
}

// Builtin is a host operation exposed to scripts.
type Builtin struct {
	BName string
	Fn    func(c *Call) (Value, error)
}

func (b *Builtin) Name() string                  { return b.BName }
func (b *Builtin) Invoke(c *Call) (Value, error) { return b.Fn(c) }

// Function is a user-defined mashscript function closing over its defining
// scope.
type Function struct {
	FName  string
	Params []string
	Body   []Stmt
	Env    *Scope
	File   string // file the function was defined in
}

func (f *Function) Name() string { return f.FName }

func (f *Function) Invoke(c *Call) (Value, error) {
	local := f.Env.Child()
	if len(c.Args) > len(f.Params) {
		return nil, c.Errorf("%s: expected at most %d arguments, got %d",
			f.FName, len(f.Params), len(c.Args))
	}
	bound := map[string]bool{}
	for i, a := range c.Args {
		local.Set(f.Params[i], a)
		bound[f.Params[i]] = true
	}
	for name, v := range c.Named {
		ok := false
		for _, p := range f.Params {
			if p == name {
				ok = true
				break
			}
		}
		if !ok {
			return nil, c.Errorf("%s: no parameter named %q", f.FName, name)
		}
		if bound[name] {
			return nil, c.Errorf("%s: parameter %q given twice", f.FName, name)
		}
		local.Set(name, v)
		bound[name] = true
	}
	for _, p := range f.Params {
		if !bound[p] {
			local.Set(p, nil)
		}
	}
	prev := c.Interp.file
	c.Interp.file = f.File
	defer func() { c.Interp.file = prev }()
	ret, err := c.Interp.execBlock(f.Body, local)
	if err != nil {
		var rs *returnSignal
		if errors.As(err, &rs) {
			return rs.value, nil
		}
		return nil, err
	}
	return ret, nil
}

// Scope holds variables. Scopes stack in a reverse linked list; the global
// scope is the shared document context.
type Scope struct {
	Parent *Scope
	vars   map[string]Value
}

func NewScope() *Scope { return &Scope{} }

// Child returns a scope with this one as its parent.
func (s *Scope) Child() *Scope { return &Scope{Parent: s} }

// Set binds name in this scope, shadowing outer bindings.
func (s *Scope) Set(name string, v Value) {
	if s.vars == nil {
		s.vars = map[string]Value{}
	}
	s.vars[name] = v
}

// Assign overwrites an existing binding wherever it lives, or creates one
// here.
func (s *Scope) Assign(name string, v Value) {
	_, owner := s.lookup(name)
	if owner == nil {
		owner = s
	}
	owner.Set(name, v)
}

// Get looks name up through the scope chain; missing names are nil.
func (s *Scope) Get(name string) Value {
	v, _ := s.lookup(name)
	return v
}

// Has reports whether name is bound anywhere in the chain.
func (s *Scope) Has(name string) bool {
	_, owner := s.lookup(name)
	return owner != nil
}

func (s *Scope) lookup(name string) (Value, *Scope) {
	if v, ok := s.vars[name]; ok {
		return v, s
	}
	if s.Parent != nil {
		return s.Parent.lookup(name)
	}
	return nil, nil
}

// Truth reports mashscript truthiness: nil, false, zero, the empty string
// and the empty list are false.
func Truth(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []Value:
		return len(x) > 0
	default:
		return true
	}
}

// TypeName names a value's type for error messages.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case []Value:
		return "list"
	case Callable:
		return "function"
	case Attrs:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// ToString renders a value the way print does.
func ToString(v Value) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case []Value:
		var b strings.Builder
		b.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			if s, ok := e.(string); ok {
				b.WriteString(strconv.Quote(s))
			} else {
				b.WriteString(ToString(e))
			}
		}
		b.WriteByte(']')
		return b.String()
	case Callable:
		return fmt.Sprintf("<function %s>", x.Name())
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Equal compares two values. Numbers compare across int and float; lists
// compare elementwise.
func Equal(a, b Value) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []Value:
		y, ok := b.([]Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
