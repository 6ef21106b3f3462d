package variable

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

// CompareOperator is one of the standard comparison operators.
type CompareOperator int

const (
	Equals CompareOperator = iota
	NotEquals
	LessThan
	GreaterThan
	LessThanOrEquals
	GreaterThanOrEquals
)

var compareSymbols = [...]string{"==", "!=", "<", ">", "<=", ">="}

func (op CompareOperator) String() string {
	if op < 0 || int(op) >= len(compareSymbols) {
		return fmt.Sprintf("CompareOperator(%d)", int(op))
	}
	return compareSymbols[op]
}

// ParseCompareOperator accepts both symbolic ("<=") and named ("lte") forms.
func ParseCompareOperator(s string) (CompareOperator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "==", "=", "eq", "equals":
		return Equals, nil
	case "!=", "~=", "ne", "notequals":
		return NotEquals, nil
	case "<", "lt", "lessthan":
		return LessThan, nil
	case ">", "gt", "greaterthan":
		return GreaterThan, nil
	case "<=", "le", "lte", "lessthanorequals":
		return LessThanOrEquals, nil
	case ">=", "ge", "gte", "greaterthanorequals":
		return GreaterThanOrEquals, nil
	}
	return Equals, fmt.Errorf("variable: unknown comparison operator %q", s)
}

func (op CompareOperator) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

func (op *CompareOperator) UnmarshalText(text []byte) error {
	parsed, err := ParseCompareOperator(string(text))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// Compare evaluates lhs op rhs. Both sides must have the same type.
// Ordering operators are only defined for integers and floats.
func Compare(lhs Value, op CompareOperator, rhs Value) (bool, error) {
	if lhs.t != rhs.t {
		return false, fmt.Errorf("%w: %v %v %v", ErrTypeMismatch, lhs.t, op, rhs.t)
	}

	switch lhs.t {
	case TypeInteger:
		return ordered(lhs.i, op, rhs.i)
	case TypeFloat:
		return ordered(lhs.f, op, rhs.f)
	}

	switch op {
	case Equals:
		return lhs.Equal(rhs), nil
	case NotEquals:
		return !lhs.Equal(rhs), nil
	}
	return false, fmt.Errorf("%w: %v %v", ErrUnsupportedOperator, lhs.t, op)
}

func ordered[T int64 | float64](a T, op CompareOperator, b T) (bool, error) {
	switch op {
	case Equals:
		return a == b, nil
	case NotEquals:
		return a != b, nil
	case LessThan:
		return a < b, nil
	case GreaterThan:
		return a > b, nil
	case LessThanOrEquals:
		return a <= b, nil
	case GreaterThanOrEquals:
		return a >= b, nil
	}
	return false, fmt.Errorf("%w: %v", ErrUnsupportedOperator, op)
}

// ---------------------------------------------------------------------------
// Mutation
// ---------------------------------------------------------------------------

// SetOperator is one of the operations a command can apply to a variable.
type SetOperator int

const (
	Assign SetOperator = iota
	Negate
	Add
	Subtract
	Multiply
	Divide
)

var setSymbols = [...]string{"=", "=!", "+=", "-=", "*=", "/="}

func (op SetOperator) String() string {
	if op < 0 || int(op) >= len(setSymbols) {
		return fmt.Sprintf("SetOperator(%d)", int(op))
	}
	return setSymbols[op]
}

func ParseSetOperator(s string) (SetOperator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "=", "assign", "":
		return Assign, nil
	case "=!", "!", "negate":
		return Negate, nil
	case "+=", "add":
		return Add, nil
	case "-=", "subtract":
		return Subtract, nil
	case "*=", "multiply":
		return Multiply, nil
	case "/=", "divide":
		return Divide, nil
	}
	return Assign, fmt.Errorf("variable: unknown set operator %q", s)
}

func (op SetOperator) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

func (op *SetOperator) UnmarshalText(text []byte) error {
	parsed, err := ParseSetOperator(string(text))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// Apply computes the result of lhs op rhs without mutating anything.
func Apply(lhs Value, op SetOperator, rhs Value) (Value, error) {
	if lhs.t != rhs.t {
		return lhs, fmt.Errorf("%w: %v %v %v", ErrTypeMismatch, lhs.t, op, rhs.t)
	}
	if op == Assign {
		return rhs, nil
	}

	switch lhs.t {
	case TypeBoolean:
		if op == Negate {
			return Bool(!rhs.b), nil
		}
	case TypeInteger:
		switch op {
		case Add:
			return Int(lhs.i + rhs.i), nil
		case Subtract:
			return Int(lhs.i - rhs.i), nil
		case Multiply:
			return Int(lhs.i * rhs.i), nil
		case Divide:
			if rhs.i == 0 {
				return lhs, ErrDivideByZero
			}
			return Int(lhs.i / rhs.i), nil
		}
	case TypeFloat:
		switch op {
		case Add:
			return Float(lhs.f + rhs.f), nil
		case Subtract:
			return Float(lhs.f - rhs.f), nil
		case Multiply:
			return Float(lhs.f * rhs.f), nil
		case Divide:
			return Float(lhs.f / rhs.f), nil
		}
	case TypeString:
		if op == Add {
			return String(lhs.s + rhs.s), nil
		}
	case TypeVector2, TypeVector3:
		out := lhs
		switch op {
		case Add:
			for i := range out.v {
				out.v[i] += rhs.v[i]
			}
			return out, nil
		case Subtract:
			for i := range out.v {
				out.v[i] -= rhs.v[i]
			}
			return out, nil
		}
	}
	return lhs, fmt.Errorf("%w: %v %v", ErrUnsupportedOperator, lhs.t, op)
}
