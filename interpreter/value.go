package interpreter

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/oarkflow/script/ast"
)

type ValueType int

const (
	NULL_VALUE ValueType = iota
	UNDEFINED_VALUE
	INTEGER_VALUE
	FLOAT_VALUE
	STRING_VALUE
	BOOLEAN_VALUE
	FUNCTION_VALUE
	OBJECT_VALUE
	controlValue
)

func (vt ValueType) String() string {
	switch vt {
	case NULL_VALUE:
		return "null"
	case UNDEFINED_VALUE:
		return "undefined"
	case INTEGER_VALUE:
		return "integer"
	case FLOAT_VALUE:
		return "float"
	case STRING_VALUE:
		return "string"
	case BOOLEAN_VALUE:
		return "boolean"
	case FUNCTION_VALUE:
		return "function"
	case OBJECT_VALUE:
		return "object"
	case controlValue:
		return "control"
	default:
		return "unknown"
	}
}

// Value is a runtime value. Inspect renders it the way string
// concatenation and log output see it.
type Value interface {
	Type() ValueType
	Inspect() string
}

type Null struct{}

func (n *Null) Type() ValueType { return NULL_VALUE }
func (n *Null) Inspect() string  { return "null" }

type Undefined struct{}

func (u *Undefined) Type() ValueType { return UNDEFINED_VALUE }
func (u *Undefined) Inspect() string  { return "undefined" }

type Integer struct {
	Value int64
}

func (i *Integer) Type() ValueType { return INTEGER_VALUE }
func (i *Integer) Inspect() string  { return strconv.FormatInt(i.Value, 10) }

type Float struct {
	Value float64
}

func (f *Float) Type() ValueType { return FLOAT_VALUE }
func (f *Float) Inspect() string  { return formatFloat(f.Value) }

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if abs := math.Abs(f); abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type String struct {
	Value string
}

func (s *String) Type() ValueType { return STRING_VALUE }
func (s *String) Inspect() string  { return s.Value }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ValueType { return BOOLEAN_VALUE }
func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }

// NativeFunction is the host callable shape.
type NativeFunction func(args []Value) (Value, error)

// Function is a user function (Parameters and Body) or a host function
// (Native). User functions hold no reference to the scope they were
// defined in.
type Function struct {
	Name       string
	Parameters []*ast.Identifier
	Body       *ast.BlockStatement
	Native     NativeFunction
}

func (f *Function) Type() ValueType { return FUNCTION_VALUE }
func (f *Function) Inspect() string {
	if f.IsNative() {
		return "function " + f.Name + "() { [native code] }"
	}
	params := make([]string, len(f.Parameters))
	for i, p := range f.Parameters {
		params[i] = p.Name
	}
	return "function " + f.Name + "(" + strings.Join(params, ", ") + ") " + f.Body.String()
}

func (f *Function) IsNative() bool { return f.Native != nil }

type Object struct {
	Pairs map[string]Value
}

func (o *Object) Type() ValueType { return OBJECT_VALUE }
func (o *Object) Inspect() string {
	var out strings.Builder
	out.WriteString("{")
	for i, key := range o.Keys() {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(key)
		out.WriteString(": ")
		v := o.Pairs[key]
		if s, ok := v.(*String); ok {
			out.WriteString(strconv.Quote(s.Value))
		} else {
			out.WriteString(v.Inspect())
		}
	}
	out.WriteString("}")
	return out.String()
}

// Keys returns the property names in sorted order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, len(o.Pairs))
	for k := range o.Pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (o *Object) Get(key string) Value {
	if v, ok := o.Pairs[key]; ok {
		return v
	}
	return UNDEFINED
}

func (o *Object) Set(key string, v Value) {
	o.Pairs[key] = v
}

type controlFlag int

const (
	flagNone controlFlag = iota
	flagBreak
	flagContinue
	flagReturn
)

// control carries break/continue/return up through block and loop
// evaluation. It never leaves the package: calls unwrap it and the
// public entry points reject a stray break or continue.
type control struct {
	flag  controlFlag
	value Value
}

func (c *control) Type() ValueType { return controlValue }
func (c *control) Inspect() string {
	switch c.flag {
	case flagBreak:
		return "break"
	case flagContinue:
		return "continue"
	case flagReturn:
		return "return " + c.value.Inspect()
	}
	return "none"
}

var (
	NULL      = &Null{}
	UNDEFINED = &Undefined{}
	TRUE      = &Boolean{Value: true}
	FALSE     = &Boolean{Value: false}

	BREAK    = &control{flag: flagBreak}
	CONTINUE = &control{flag: flagContinue}
)

func nativeBoolToBooleanValue(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

func NewInteger(v int64) *Integer { return &Integer{Value: v} }
func NewFloat(v float64) *Float   { return &Float{Value: v} }
func NewString(v string) *String  { return &String{Value: v} }
func NewBoolean(v bool) *Boolean  { return nativeBoolToBooleanValue(v) }
func NewObject(pairs map[string]Value) *Object {
	if pairs == nil {
		pairs = make(map[string]Value)
	}
	return &Object{Pairs: pairs}
}

// NewNative wraps a host function as a callable value.
func NewNative(name string, fn NativeFunction) *Function {
	return &Function{Name: name, Native: fn}
}

func isControl(v Value) (*control, bool) {
	c, ok := v.(*control)
	return c, ok
}

// TypeOf follows the JavaScript typeof names.
func TypeOf(v Value) string {
	switch v.Type() {
	case INTEGER_VALUE, FLOAT_VALUE:
		return "number"
	case NULL_VALUE:
		return "object"
	}
	return v.Type().String()
}
