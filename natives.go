package script

import (
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/oarkflow/convert"

	"github.com/oarkflow/script/errs"
	"github.com/oarkflow/script/interpreter"
	"github.com/oarkflow/script/pkg/bridge"
)

func registerDefaultNatives() {
	defaults := map[string]interpreter.NativeFunction{
		"len":    nativeLen,
		"keys":   nativeKeys,
		"typeof": nativeTypeOf,
		"String": nativeString,
		"Number": nativeNumber,
	}
	for name, fn := range defaults {
		_ = nativeRegistry.register(name, fn, true)
	}
}

func expectArgs(name string, args []interpreter.Value, n int) error {
	if len(args) != n {
		return errs.Type(errs.Position{}, "%s expects %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func nativeLen(args []interpreter.Value) (interpreter.Value, error) {
	if err := expectArgs("len", args, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case *interpreter.String:
		return interpreter.NewInteger(int64(utf8.RuneCountInString(v.Value))), nil
	case *interpreter.Object:
		if n, ok := v.Pairs["length"].(*interpreter.Integer); ok {
			return interpreter.NewInteger(n.Value), nil
		}
		return interpreter.NewInteger(int64(len(v.Pairs))), nil
	}
	return nil, errs.Type(errs.Position{}, "len: unsupported argument of type %s", args[0].Type())
}

func nativeKeys(args []interpreter.Value) (interpreter.Value, error) {
	if err := expectArgs("keys", args, 1); err != nil {
		return nil, err
	}
	obj, ok := args[0].(*interpreter.Object)
	if !ok {
		return nil, errs.Type(errs.Position{}, "keys: argument is not an object (got %s)", args[0].Type())
	}
	keys := obj.Keys()
	items := make([]interpreter.Value, len(keys))
	for i, k := range keys {
		items[i] = interpreter.NewString(k)
	}
	return bridge.ArrayLike(items), nil
}

func nativeTypeOf(args []interpreter.Value) (interpreter.Value, error) {
	if err := expectArgs("typeof", args, 1); err != nil {
		return nil, err
	}
	return interpreter.NewString(interpreter.TypeOf(args[0])), nil
}

func nativeString(args []interpreter.Value) (interpreter.Value, error) {
	if len(args) == 0 {
		return interpreter.NewString(""), nil
	}
	return interpreter.NewString(interpreter.ToString(args[0])), nil
}

func nativeNumber(args []interpreter.Value) (interpreter.Value, error) {
	if len(args) == 0 {
		return interpreter.NewInteger(0), nil
	}
	switch v := args[0].(type) {
	case *interpreter.Integer, *interpreter.Float:
		return v, nil
	case *interpreter.Boolean:
		if v.Value {
			return interpreter.NewInteger(1), nil
		}
		return interpreter.NewInteger(0), nil
	case *interpreter.Null:
		return interpreter.NewInteger(0), nil
	case *interpreter.String:
		s := strings.TrimSpace(v.Value)
		if s == "" {
			return interpreter.NewInteger(0), nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return interpreter.NewInteger(n), nil
		}
		if f, ok := convert.ToFloat64(s); ok {
			return interpreter.NewFloat(f), nil
		}
	}
	return interpreter.NewFloat(math.NaN()), nil
}

// jsonObject builds the JSON global with stringify and parse.
func jsonObject() *interpreter.Object {
	return interpreter.NewObject(map[string]interpreter.Value{
		"stringify": interpreter.NewNative("stringify", func(args []interpreter.Value) (interpreter.Value, error) {
			if err := expectArgs("JSON.stringify", args, 1); err != nil {
				return nil, err
			}
			if args[0] == interpreter.UNDEFINED {
				return interpreter.UNDEFINED, nil
			}
			data, err := bridge.ToJSON(args[0])
			if err != nil {
				return nil, err
			}
			return interpreter.NewString(string(data)), nil
		}),
		"parse": interpreter.NewNative("parse", func(args []interpreter.Value) (interpreter.Value, error) {
			if err := expectArgs("JSON.parse", args, 1); err != nil {
				return nil, err
			}
			s, ok := args[0].(*interpreter.String)
			if !ok {
				return nil, errs.Type(errs.Position{}, "JSON.parse expects a string (got %s)", args[0].Type())
			}
			return bridge.FromJSON([]byte(s.Value))
		}),
	})
}

// outputSink collects what log and print write during a run.
type outputSink struct {
	mu     sync.Mutex
	lines  []string
	writer io.Writer
}

func newOutputSink(w io.Writer) *outputSink {
	return &outputSink{writer: w}
}

func (s *outputSink) native(args []interpreter.Value) (interpreter.Value, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = interpreter.ToString(arg)
	}
	line := strings.Join(parts, " ")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	if s.writer != nil {
		if _, err := io.WriteString(s.writer, line+"\n"); err != nil {
			return nil, err
		}
	}
	return interpreter.UNDEFINED, nil
}

func (s *outputSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}
