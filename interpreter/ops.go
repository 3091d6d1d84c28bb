package interpreter

import (
	"math"

	"github.com/oarkflow/script/errs"
)

// ToString is the string conversion used by concatenation and templates.
func ToString(v Value) string {
	return v.Inspect()
}

func isNumeric(v Value) bool {
	t := v.Type()
	return t == INTEGER_VALUE || t == FLOAT_VALUE
}

func toFloat(v Value) float64 {
	switch v := v.(type) {
	case *Integer:
		return float64(v.Value)
	case *Float:
		return v.Value
	}
	return math.NaN()
}

// BinaryOp applies an arithmetic, bitwise, comparison or equality operator.
// Errors carry no position; the evaluator adds it.
func BinaryOp(op string, left, right Value) (Value, error) {
	switch op {
	case "===":
		return nativeBoolToBooleanValue(Equals(left, right, true)), nil
	case "!==":
		return nativeBoolToBooleanValue(!Equals(left, right, true)), nil
	case "==", "!=":
		if !looselyComparable(left, right) {
			return nil, unsupported(op, left, right)
		}
		eq := Equals(left, right, false)
		return nativeBoolToBooleanValue(eq == (op == "==")), nil
	}

	switch {
	case op == "+" && (left.Type() == STRING_VALUE || right.Type() == STRING_VALUE):
		return concat(left, right)
	case left.Type() == INTEGER_VALUE && right.Type() == INTEGER_VALUE:
		return integerOp(op, left.(*Integer).Value, right.(*Integer).Value)
	case isNumeric(left) && isNumeric(right):
		return floatOp(op, toFloat(left), toFloat(right))
	case left.Type() == STRING_VALUE && right.Type() == STRING_VALUE:
		return stringCompare(op, left.(*String).Value, right.(*String).Value)
	}
	return nil, unsupported(op, left, right)
}

func unsupported(op string, left, right Value) *errs.Error {
	return errs.Type(errs.Position{}, "unsupported operand types for %s: %s and %s", op, left.Type(), right.Type())
}

// concat joins a string with a string, number or boolean operand.
func concat(left, right Value) (Value, error) {
	for _, v := range []Value{left, right} {
		switch v.Type() {
		case STRING_VALUE, INTEGER_VALUE, FLOAT_VALUE, BOOLEAN_VALUE:
		default:
			return nil, unsupported("+", left, right)
		}
	}
	return &String{Value: ToString(left) + ToString(right)}, nil
}

func integerOp(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		return &Integer{Value: a + b}, nil
	case "-":
		return &Integer{Value: a - b}, nil
	case "*":
		return &Integer{Value: a * b}, nil
	case "/":
		if b == 0 {
			return nil, errs.Arithmetic(errs.Position{}, "division by zero")
		}
		return &Integer{Value: a / b}, nil
	case "%":
		if b == 0 {
			return nil, errs.Arithmetic(errs.Position{}, "modulo by zero")
		}
		return &Integer{Value: a % b}, nil
	case "&":
		return &Integer{Value: a & b}, nil
	case "|":
		return &Integer{Value: a | b}, nil
	case "^":
		return &Integer{Value: a ^ b}, nil
	case "<<", ">>", ">>>":
		if b < 0 {
			return nil, errs.New(errs.KindRange, errs.Position{}, "negative shift count %d", b)
		}
		switch op {
		case "<<":
			return &Integer{Value: a << uint64(b)}, nil
		case ">>":
			return &Integer{Value: a >> uint64(b)}, nil
		default:
			return &Integer{Value: int64(uint64(a) >> uint64(b))}, nil
		}
	case "<":
		return nativeBoolToBooleanValue(a < b), nil
	case ">":
		return nativeBoolToBooleanValue(a > b), nil
	case "<=":
		return nativeBoolToBooleanValue(a <= b), nil
	case ">=":
		return nativeBoolToBooleanValue(a >= b), nil
	}
	return nil, unsupported(op, &Integer{Value: a}, &Integer{Value: b})
}

func floatOp(op string, a, b float64) (Value, error) {
	switch op {
	case "+":
		return &Float{Value: a + b}, nil
	case "-":
		return &Float{Value: a - b}, nil
	case "*":
		return &Float{Value: a * b}, nil
	case "/":
		if b == 0 {
			return nil, errs.Arithmetic(errs.Position{}, "division by zero")
		}
		return &Float{Value: a / b}, nil
	case "%":
		if b == 0 {
			return nil, errs.Arithmetic(errs.Position{}, "modulo by zero")
		}
		return &Float{Value: math.Mod(a, b)}, nil
	case "<":
		return nativeBoolToBooleanValue(a < b), nil
	case ">":
		return nativeBoolToBooleanValue(a > b), nil
	case "<=":
		return nativeBoolToBooleanValue(a <= b), nil
	case ">=":
		return nativeBoolToBooleanValue(a >= b), nil
	}
	return nil, unsupported(op, &Float{Value: a}, &Float{Value: b})
}

func stringCompare(op string, a, b string) (Value, error) {
	switch op {
	case "<":
		return nativeBoolToBooleanValue(a < b), nil
	case ">":
		return nativeBoolToBooleanValue(a > b), nil
	case "<=":
		return nativeBoolToBooleanValue(a <= b), nil
	case ">=":
		return nativeBoolToBooleanValue(a >= b), nil
	}
	return nil, unsupported(op, &String{Value: a}, &String{Value: b})
}

func isNullish(v Value) bool {
	t := v.Type()
	return t == NULL_VALUE || t == UNDEFINED_VALUE
}

// looselyComparable reports whether == and != accept the pair: values of
// one kind, two numbers, or a pair where either side is null or undefined.
// Everything else would need a coercion the language does not perform.
func looselyComparable(left, right Value) bool {
	if left.Type() == right.Type() || isNullish(left) || isNullish(right) {
		return true
	}
	return isNumeric(left) && isNumeric(right)
}

// Equals is total over all value pairs. Integers and floats compare by
// numeric value; objects and functions compare by identity. Loose
// equality additionally treats null and undefined as equal.
func Equals(left, right Value, strict bool) bool {
	if isNumeric(left) && isNumeric(right) {
		if l, ok := left.(*Integer); ok {
			if r, ok := right.(*Integer); ok {
				return l.Value == r.Value
			}
		}
		return toFloat(left) == toFloat(right)
	}
	lt, rt := left.Type(), right.Type()
	if lt != rt {
		if strict {
			return false
		}
		return isNullish(left) && isNullish(right)
	}
	switch l := left.(type) {
	case *String:
		return l.Value == right.(*String).Value
	case *Boolean:
		return l.Value == right.(*Boolean).Value
	case *Null, *Undefined:
		return true
	}
	return left == right
}

// UnaryOp applies a prefix operator other than delete.
func UnaryOp(op string, operand Value) (Value, error) {
	switch op {
	case "!":
		b, ok := operand.(*Boolean)
		if !ok {
			return nil, errs.Type(errs.Position{}, "operator ! expects a boolean, got %s", operand.Type())
		}
		return nativeBoolToBooleanValue(!b.Value), nil
	case "-":
		switch v := operand.(type) {
		case *Integer:
			return &Integer{Value: -v.Value}, nil
		case *Float:
			return &Float{Value: -v.Value}, nil
		}
	case "+":
		if isNumeric(operand) {
			return operand, nil
		}
	}
	return nil, errs.Type(errs.Position{}, "unsupported operand type for unary %s: %s", op, operand.Type())
}

// Increment adds delta to an integer; other types are rejected.
func Increment(v Value, delta int64) (Value, error) {
	i, ok := v.(*Integer)
	if !ok {
		return nil, errs.Type(errs.Position{}, "increment/decrement expects an integer, got %s", v.Type())
	}
	return &Integer{Value: i.Value + delta}, nil
}
