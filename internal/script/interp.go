package script

import (
	"errors"
	"fmt"
)

// Interp is a tree-walking evaluator for mashscript. Its global scope is the
// shared document context: names bound by one chunk are visible to every
// later chunk.
type Interp struct {
	Globals *Scope

	file string // origin file of the chunk currently executing
}

func NewInterp() *Interp {
	return &Interp{Globals: NewScope()}
}

// Eval parses and executes a chunk against the global scope. file and
// startLine locate the chunk for error reporting.
func (in *Interp) Eval(src, file string, startLine int) error {
	_, err := in.EvalResult(src, file, startLine)
	return err
}

// EvalResult is Eval, additionally returning the value of the chunk's last
// expression statement. The REPL uses it to echo results.
func (in *Interp) EvalResult(src, file string, startLine int) (Value, error) {
	stmts, err := Parse(src, file, startLine)
	if err != nil {
		return nil, err
	}
	prev := in.file
	in.file = file
	defer func() { in.file = prev }()
	last, err := in.execBlock(stmts, in.Globals)
	if err != nil {
		var rs *returnSignal
		var bs *breakSignal
		var cs *continueSignal
		switch {
		case errors.As(err, &rs):
			return nil, &Error{Msg: "return outside function", File: file, Line: startLine}
		case errors.As(err, &bs):
			return nil, &Error{Msg: "break outside loop", File: file, Line: bs.line}
		case errors.As(err, &cs):
			return nil, &Error{Msg: "continue outside loop", File: file, Line: cs.line}
		}
		return nil, err
	}
	return last, nil
}

// Bind installs a name in the shared document context.
func (in *Interp) Bind(name string, value any) { in.Globals.Set(name, value) }

// Lookup reads a name from the shared document context.
func (in *Interp) Lookup(name string) (any, bool) {
	if !in.Globals.Has(name) {
		return nil, false
	}
	return in.Globals.Get(name), true
}

// Call invokes a callable held in the context, e.g. a frame hook. Errors
// are reported at the given origin.
func (in *Interp) Call(fn Value, args []Value, file string, line int) (Value, error) {
	c, ok := fn.(Callable)
	if !ok {
		return nil, &Error{Msg: fmt.Sprintf("%s is not callable", TypeName(fn)),
			File: file, Line: line}
	}
	return c.Invoke(&Call{Interp: in, Args: args, File: file, Line: line})
}

// execBlock runs statements in order. The value of the last expression
// statement is returned, which lets function bodies without an explicit
// return still produce a value.
func (in *Interp) execBlock(stmts []Stmt, sc *Scope) (Value, error) {
	var last Value
	for _, s := range stmts {
		v, err := in.execStmt(s, sc)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

func (in *Interp) execStmt(s Stmt, sc *Scope) (Value, error) {
	switch st := s.(type) {
	case *ExprStmt:
		return in.evalExpr(st.X, sc)

	case *AssignStmt:
		v, err := in.evalExpr(st.Value, sc)
		if err != nil {
			return nil, err
		}
		return nil, in.assign(st.Target, v, sc)

	case *IfStmt:
		cond, err := in.evalExpr(st.Cond, sc)
		if err != nil {
			return nil, err
		}
		if Truth(cond) {
			return in.execBlock(st.Then, sc)
		}
		return in.execBlock(st.Else, sc)

	case *WhileStmt:
		for {
			cond, err := in.evalExpr(st.Cond, sc)
			if err != nil {
				return nil, err
			}
			if !Truth(cond) {
				return nil, nil
			}
			if _, err := in.execBlock(st.Body, sc); err != nil {
				var bs *breakSignal
				if errors.As(err, &bs) {
					return nil, nil
				}
				var cs *continueSignal
				if errors.As(err, &cs) {
					continue
				}
				return nil, err
			}
		}

	case *ForStmt:
		seq, err := in.evalExpr(st.Seq, sc)
		if err != nil {
			return nil, err
		}
		var items []Value
		switch x := seq.(type) {
		case []Value:
			items = x
		case string:
			for _, r := range x {
				items = append(items, string(r))
			}
		default:
			return nil, in.errAt(st.Seq, "cannot iterate over %s", TypeName(seq))
		}
		for _, item := range items {
			sc.Assign(st.Var, item)
			if _, err := in.execBlock(st.Body, sc); err != nil {
				var bs *breakSignal
				if errors.As(err, &bs) {
					return nil, nil
				}
				var cs *continueSignal
				if errors.As(err, &cs) {
					continue
				}
				return nil, err
			}
		}
		return nil, nil

	case *FunStmt:
		sc.Assign(st.Name, &Function{
			FName: st.Name, Params: st.Params, Body: st.Body, Env: sc, File: in.file,
		})
		return nil, nil

	case *ReturnStmt:
		var v Value
		if st.X != nil {
			var err error
			v, err = in.evalExpr(st.X, sc)
			if err != nil {
				return nil, err
			}
		}
		return nil, &returnSignal{value: v}

	case *BreakStmt:
		return nil, &breakSignal{line: st.Line}

	case *ContinueStmt:
		return nil, &continueSignal{line: st.Line}

	default:
		return nil, fmt.Errorf("unhandled statement %T", s)
	}
}

func (in *Interp) assign(target Expr, v Value, sc *Scope) error {
	switch t := target.(type) {
	case *Ident:
		sc.Assign(t.Name, v)
		return nil
	case *AttrExpr:
		obj, err := in.evalExpr(t.X, sc)
		if err != nil {
			return err
		}
		a, ok := obj.(Attrs)
		if !ok {
			return in.errAt(t, "%s has no settable attributes", TypeName(obj))
		}
		if err := a.SetAttr(t.Name, v); err != nil {
			return in.errAt(t, "%s", err)
		}
		return nil
	case *IndexExpr:
		obj, err := in.evalExpr(t.X, sc)
		if err != nil {
			return err
		}
		idx, err := in.evalExpr(t.Index, sc)
		if err != nil {
			return err
		}
		lst, ok := obj.([]Value)
		if !ok {
			return in.errAt(t, "cannot index-assign into %s", TypeName(obj))
		}
		i, ok := idx.(int64)
		if !ok || i < 0 || int(i) >= len(lst) {
			return in.errAt(t, "index %s out of range", ToString(idx))
		}
		lst[i] = v
		return nil
	default:
		return in.errAt(target, "cannot assign to this expression")
	}
}

func (in *Interp) errAt(e Expr, format string, args ...interface{}) error {
	return &Error{Msg: fmt.Sprintf(format, args...), File: in.file, Line: e.exprLine()}
}

func (in *Interp) evalExpr(e Expr, sc *Scope) (Value, error) {
	switch x := e.(type) {
	case *StringLit:
		return x.Val, nil
	case *IntLit:
		return x.Val, nil
	case *FloatLit:
		return x.Val, nil
	case *BoolLit:
		return x.Val, nil
	case *NilLit:
		return nil, nil
	case *ListLit:
		lst := make([]Value, 0, len(x.Elems))
		for _, el := range x.Elems {
			v, err := in.evalExpr(el, sc)
			if err != nil {
				return nil, err
			}
			lst = append(lst, v)
		}
		return lst, nil

	case *Ident:
		if !sc.Has(x.Name) {
			return nil, in.errAt(x, "name %q is not defined", x.Name)
		}
		return sc.Get(x.Name), nil

	case *AttrExpr:
		obj, err := in.evalExpr(x.X, sc)
		if err != nil {
			return nil, err
		}
		a, ok := obj.(Attrs)
		if !ok {
			return nil, in.errAt(x, "%s has no attribute %q", TypeName(obj), x.Name)
		}
		v, err := a.Attr(x.Name)
		if err != nil {
			return nil, in.errAt(x, "%s", err)
		}
		return v, nil

	case *IndexExpr:
		obj, err := in.evalExpr(x.X, sc)
		if err != nil {
			return nil, err
		}
		idx, err := in.evalExpr(x.Index, sc)
		if err != nil {
			return nil, err
		}
		i, iok := idx.(int64)
		switch seq := obj.(type) {
		case []Value:
			if !iok || i < 0 || int(i) >= len(seq) {
				return nil, in.errAt(x, "index %s out of range", ToString(idx))
			}
			return seq[i], nil
		case string:
			if !iok || i < 0 || int(i) >= len(seq) {
				return nil, in.errAt(x, "index %s out of range", ToString(idx))
			}
			return string(seq[i]), nil
		default:
			return nil, in.errAt(x, "cannot index %s", TypeName(obj))
		}

	case *CallExpr:
		fn, err := in.evalExpr(x.Fn, sc)
		if err != nil {
			return nil, err
		}
		callable, ok := fn.(Callable)
		if !ok {
			return nil, in.errAt(x, "%s is not callable", TypeName(fn))
		}
		call := &Call{Interp: in, File: in.file, Line: x.Line}
		for _, a := range x.Args {
			v, err := in.evalExpr(a, sc)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, v)
		}
		if len(x.Named) > 0 {
			call.Named = map[string]Value{}
			for _, na := range x.Named {
				v, err := in.evalExpr(na.Value, sc)
				if err != nil {
					return nil, err
				}
				call.Named[na.Name] = v
			}
		}
		v, err := callable.Invoke(call)
		if err != nil {
			return nil, in.locate(err, x.Line)
		}
		return v, nil

	case *UnaryExpr:
		v, err := in.evalExpr(x.X, sc)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case MINUS:
			switch n := v.(type) {
			case int64:
				return -n, nil
			case float64:
				return -n, nil
			}
			return nil, in.errAt(x, "cannot negate %s", TypeName(v))
		case NOT:
			return !Truth(v), nil
		}
		return nil, in.errAt(x, "unhandled unary operator")

	case *BinaryExpr:
		return in.evalBinary(x, sc)

	default:
		return nil, fmt.Errorf("unhandled expression %T", e)
	}
}

func (in *Interp) evalBinary(x *BinaryExpr, sc *Scope) (Value, error) {
	// and/or short-circuit and yield the deciding operand.
	if x.Op == AND || x.Op == OR {
		l, err := in.evalExpr(x.L, sc)
		if err != nil {
			return nil, err
		}
		if x.Op == AND && !Truth(l) {
			return l, nil
		}
		if x.Op == OR && Truth(l) {
			return l, nil
		}
		return in.evalExpr(x.R, sc)
	}

	l, err := in.evalExpr(x.L, sc)
	if err != nil {
		return nil, err
	}
	r, err := in.evalExpr(x.R, sc)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case EQ:
		return Equal(l, r), nil
	case NEQ:
		return !Equal(l, r), nil
	}

	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			switch x.Op {
			case PLUS:
				return ls + rs, nil
			case LESS:
				return ls < rs, nil
			case LESSEQ:
				return ls <= rs, nil
			case GREATER:
				return ls > rs, nil
			case GREATEREQ:
				return ls >= rs, nil
			}
		}
		return nil, in.errAt(x, "cannot apply %q to string and %s", opName(x.Op), TypeName(r))
	}

	if ll, ok := l.([]Value); ok {
		if rl, ok := r.([]Value); ok && x.Op == PLUS {
			out := make([]Value, 0, len(ll)+len(rl))
			out = append(out, ll...)
			out = append(out, rl...)
			return out, nil
		}
		return nil, in.errAt(x, "cannot apply %q to list and %s", opName(x.Op), TypeName(r))
	}

	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, in.errAt(x, "cannot apply %q to %s and %s",
			opName(x.Op), TypeName(l), TypeName(r))
	}

	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	bothInt := lInt && rInt

	switch x.Op {
	case PLUS:
		if bothInt {
			return li + ri, nil
		}
		return lf + rf, nil
	case MINUS:
		if bothInt {
			return li - ri, nil
		}
		return lf - rf, nil
	case MULT:
		if bothInt {
			return li * ri, nil
		}
		return lf * rf, nil
	case DIV:
		if bothInt {
			if ri == 0 {
				return nil, in.errAt(x, "division by zero")
			}
			return li / ri, nil
		}
		return lf / rf, nil
	case MOD:
		if !bothInt {
			return nil, in.errAt(x, "%% requires integers")
		}
		if ri == 0 {
			return nil, in.errAt(x, "division by zero")
		}
		return li % ri, nil
	case LESS:
		return lf < rf, nil
	case LESSEQ:
		return lf <= rf, nil
	case GREATER:
		return lf > rf, nil
	case GREATEREQ:
		return lf >= rf, nil
	default:
		return nil, in.errAt(x, "unhandled operator %q", opName(x.Op))
	}
}

// locate attaches a line number to builtin errors that lack one, leaving
// script errors, control signals, and the restart sentinel untouched.
func (in *Interp) locate(err error, line int) error {
	var se *Error
	if errors.As(err, &se) || errors.Is(err, ErrRestart) {
		return err
	}
	var rs *returnSignal
	var bs *breakSignal
	var cs *continueSignal
	if errors.As(err, &rs) || errors.As(err, &bs) || errors.As(err, &cs) {
		return err
	}
	return &Error{Msg: err.Error(), File: in.file, Line: line}
}

func opName(op TokenType) string {
	switch op {
	case PLUS:
		return "+"
	case MINUS:
		return "-"
	case MULT:
		return "*"
	case DIV:
		return "/"
	case MOD:
		return "%"
	case LESS:
		return "<"
	case LESSEQ:
		return "<="
	case GREATER:
		return ">"
	case GREATEREQ:
		return ">="
	case EQ:
		return "=="
	case NEQ:
		return "!="
	case AND:
		return "and"
	case OR:
		return "or"
	default:
		return "?"
	}
}
