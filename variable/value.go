// Package variable implements the typed storage cells that flowcharts read
// and write: values, variables, comparison and mutation operators, and the
// keyed tables that own them.
package variable

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrTypeMismatch        = errors.New("variable: type mismatch")
	ErrUnsupportedOperator = errors.New("variable: operator not supported for type")
	ErrDivideByZero        = errors.New("variable: integer division by zero")
	ErrDuplicateKey        = errors.New("variable: duplicate key")
	ErrUnknownType         = errors.New("variable: unknown type")
)

// ---------------------------------------------------------------------------
// Type
// ---------------------------------------------------------------------------

// Type is the fixed type tag of a Value.
type Type int

const (
	TypeNone Type = iota
	TypeBoolean
	TypeInteger
	TypeFloat
	TypeString
	TypeVector2
	TypeVector3
	TypeColor
	TypeObject
	TypeGameObject
)

var typeNames = map[Type]string{
	TypeNone:       "none",
	TypeBoolean:    "boolean",
	TypeInteger:    "integer",
	TypeFloat:      "float",
	TypeString:     "string",
	TypeVector2:    "vector2",
	TypeVector3:    "vector3",
	TypeColor:      "color",
	TypeObject:     "object",
	TypeGameObject: "gameobject",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType maps a type name ("integer", "int", "bool", ...) to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "boolean", "bool":
		return TypeBoolean, nil
	case "integer", "int":
		return TypeInteger, nil
	case "float", "number":
		return TypeFloat, nil
	case "string", "text":
		return TypeString, nil
	case "vector2", "vec2":
		return TypeVector2, nil
	case "vector3", "vec3":
		return TypeVector3, nil
	case "color", "colour":
		return TypeColor, nil
	case "object":
		return TypeObject, nil
	case "gameobject":
		return TypeGameObject, nil
	}
	return TypeNone, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Serializable reports whether values of this type survive a save.
// Object references point at engine objects and are never persisted.
func (t Type) Serializable() bool {
	return t != TypeNone && t != TypeObject && t != TypeGameObject
}

// ---------------------------------------------------------------------------
// Value: tagged union
// ---------------------------------------------------------------------------

type Vec2 struct{ X, Y float64 }

type Vec3 struct{ X, Y, Z float64 }

type Color struct{ R, G, B, A float64 }

// Value is an immutable tagged union over the supported variable types.
type Value struct {
	t   Type
	b   bool
	i   int64
	f   float64
	s   string
	v   [4]float64
	ref any
}

func Bool(b bool) Value { return Value{t: TypeBoolean, b: b} }
func Int(i int64) Value { return Value{t: TypeInteger, i: i} }
func Float(f float64) Value { return Value{t: TypeFloat, f: f} }
func String(s string) Value { return Value{t: TypeString, s: s} }
func Object(ref any) Value { return Value{t: TypeObject, ref: ref} }
func GameObject(ref any) Value { return Value{t: TypeGameObject, ref: ref} }

func Vector2(x, y float64) Value {
	return Value{t: TypeVector2, v: [4]float64{x, y}}
}

func Vector3(x, y, z float64) Value {
	return Value{t: TypeVector3, v: [4]float64{x, y, z}}
}

func RGBA(r, g, b, a float64) Value {
	return Value{t: TypeColor, v: [4]float64{r, g, b, a}}
}

// Zero returns the zero value of t.
func Zero(t Type) Value {
	return Value{t: t}
}

func (v Value) Type() Type { return v.t }
func (v Value) IsValid() bool { return v.t != TypeNone }
func (v Value) Bool() bool { return v.b }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Text() string { return v.s }
func (v Value) Ref() any { return v.ref }
func (v Value) Vec2() Vec2 { return Vec2{v.v[0], v.v[1]} }
func (v Value) Vec3() Vec3 { return Vec3{v.v[0], v.v[1], v.v[2]} }
func (v Value) Color() Color { return Color{v.v[0], v.v[1], v.v[2], v.v[3]} }

// Components returns the vector or color components, or nil for scalar types.
func (v Value) Components() []float64 {
	switch v.t {
	case TypeVector2:
		return []float64{v.v[0], v.v[1]}
	case TypeVector3:
		return []float64{v.v[0], v.v[1], v.v[2]}
	case TypeColor:
		return []float64{v.v[0], v.v[1], v.v[2], v.v[3]}
	}
	return nil
}

// Equal reports whether two values have the same type and contents.
// Floats compare bitwise so that a saved NaN equals its restored copy.
func (v Value) Equal(o Value) bool {
	if v.t != o.t {
		return false
	}
	switch v.t {
	case TypeBoolean:
		return v.b == o.b
	case TypeInteger:
		return v.i == o.i
	case TypeFloat:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case TypeString:
		return v.s == o.s
	case TypeVector2, TypeVector3, TypeColor:
		return v.v == o.v
	case TypeObject, TypeGameObject:
		return refEqual(v.ref, o.ref)
	}
	return true
}

func refEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

func (v Value) String() string {
	switch v.t {
	case TypeBoolean:
		return strconv.FormatBool(v.b)
	case TypeInteger:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString:
		return v.s
	case TypeVector2:
		return fmt.Sprintf("(%g, %g)", v.v[0], v.v[1])
	case TypeVector3:
		return fmt.Sprintf("(%g, %g, %g)", v.v[0], v.v[1], v.v[2])
	case TypeColor:
		return fmt.Sprintf("RGBA(%g, %g, %g, %g)", v.v[0], v.v[1], v.v[2], v.v[3])
	case TypeObject, TypeGameObject:
		if v.ref == nil {
			return "<none>"
		}
		return fmt.Sprintf("%v", v.ref)
	}
	return "<invalid>"
}

// ---------------------------------------------------------------------------
// Coercion from loosely typed input
// ---------------------------------------------------------------------------

// Coerce converts a loosely typed literal (as produced by TOML or JSON
// decoding) into a Value of type t.
func Coerce(t Type, raw any) (Value, error) {
	switch t {
	case TypeBoolean:
		switch x := raw.(type) {
		case bool:
			return Bool(x), nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return Value{}, fmt.Errorf("%w: %q is not a boolean", ErrTypeMismatch, x)
			}
			return Bool(b), nil
		}
	case TypeInteger:
		switch x := raw.(type) {
		case int:
			return Int(int64(x)), nil
		case int64:
			return Int(x), nil
		case uint64:
			return Int(int64(x)), nil
		case float64:
			if x == math.Trunc(x) {
				return Int(int64(x)), nil
			}
		case string:
			n, err := strconv.ParseInt(x, 10, 64)
			if err == nil {
				return Int(n), nil
			}
		}
	case TypeFloat:
		switch x := raw.(type) {
		case float64:
			return Float(x), nil
		case float32:
			return Float(float64(x)), nil
		case int:
			return Float(float64(x)), nil
		case int64:
			return Float(float64(x)), nil
		case uint64:
			return Float(float64(x)), nil
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err == nil {
				return Float(f), nil
			}
		}
	case TypeString:
		switch x := raw.(type) {
		case string:
			return String(x), nil
		case nil:
			return String(""), nil
		default:
			return String(fmt.Sprint(x)), nil
		}
	case TypeVector2, TypeVector3, TypeColor:
		comps, ok := floatSlice(raw)
		if !ok {
			break
		}
		switch {
		case t == TypeVector2 && len(comps) == 2:
			return Vector2(comps[0], comps[1]), nil
		case t == TypeVector3 && len(comps) == 3:
			return Vector3(comps[0], comps[1], comps[2]), nil
		case t == TypeColor && len(comps) == 3:
			return RGBA(comps[0], comps[1], comps[2], 1), nil
		case t == TypeColor && len(comps) == 4:
			return RGBA(comps[0], comps[1], comps[2], comps[3]), nil
		}
	case TypeObject:
		return Object(raw), nil
	case TypeGameObject:
		return GameObject(raw), nil
	default:
		return Value{}, fmt.Errorf("%w: %v", ErrUnknownType, t)
	}
	return Value{}, fmt.Errorf("%w: cannot use %v (%T) as %v", ErrTypeMismatch, raw, raw, t)
}

// FromComponents builds a vector or color value from its components.
func FromComponents(t Type, comps []float64) (Value, error) {
	raw := make([]any, len(comps))
	for i, c := range comps {
		raw[i] = c
	}
	return Coerce(t, raw)
}

func floatSlice(raw any) ([]float64, bool) {
	switch x := raw.(type) {
	case []float64:
		return x, true
	case []any:
		out := make([]float64, 0, len(x))
		for _, e := range x {
			switch n := e.(type) {
			case float64:
				out = append(out, n)
			case int64:
				out = append(out, float64(n))
			case int:
				out = append(out, float64(n))
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}
