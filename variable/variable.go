package variable

import "fmt"

// Scope controls who can see a variable.
type Scope int

const (
	// Private variables are visible to commands of the owning flowchart only.
	Private Scope = iota
	// Public variables may be read by commands in other flowcharts.
	Public
	// Global variables share one cell per key across every flowchart that
	// declares them. The cell lives in the global table handed to the
	// flowchart, not in the flowchart itself.
	Global
)

var scopeNames = [...]string{"private", "public", "global"}

func (s Scope) String() string {
	if s < 0 || int(s) >= len(scopeNames) {
		return fmt.Sprintf("Scope(%d)", int(s))
	}
	return scopeNames[s]
}

func ParseScope(s string) (Scope, error) {
	for i, name := range scopeNames {
		if name == s {
			return Scope(i), nil
		}
	}
	if s == "" {
		return Private, nil
	}
	return Private, fmt.Errorf("variable: unknown scope %q", s)
}

func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Scope) UnmarshalText(text []byte) error {
	parsed, err := ParseScope(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ---------------------------------------------------------------------------
// Variable
// ---------------------------------------------------------------------------

// Variable is a named, typed storage cell. Its type is fixed by the value it
// was created with.
type Variable struct {
	key   string
	scope Scope
	value Value
	start Value

	// shared is the global cell this variable forwards to, if any.
	shared *Variable
}

// New creates a private variable whose start value is v.
func New(key string, v Value) *Variable {
	return NewScoped(key, Private, v)
}

func NewScoped(key string, scope Scope, v Value) *Variable {
	return &Variable{key: key, scope: scope, value: v, start: v}
}

func (v *Variable) Key() string  { return v.key }
func (v *Variable) Scope() Scope { return v.scope }
func (v *Variable) Type() Type   { return v.start.t }

// Start returns the value the variable resets to.
func (v *Variable) Start() Value { return v.start }

func (v *Variable) Value() Value {
	if v.shared != nil {
		return v.shared.value
	}
	return v.value
}

// Set replaces the value. The new value must have the variable's type.
func (v *Variable) Set(val Value) error {
	if val.t != v.Type() {
		return fmt.Errorf("%w: %s is %v, got %v", ErrTypeMismatch, v.key, v.Type(), val.t)
	}
	if v.shared != nil {
		v.shared.value = val
		return nil
	}
	v.value = val
	return nil
}

// Compare evaluates value op rhs.
func (v *Variable) Compare(op CompareOperator, rhs Value) (bool, error) {
	return Compare(v.Value(), op, rhs)
}

// Apply mutates the variable with op. On error the value is unchanged.
func (v *Variable) Apply(op SetOperator, rhs Value) error {
	next, err := Apply(v.Value(), op, rhs)
	if err != nil {
		return fmt.Errorf("%s: %w", v.key, err)
	}
	return v.Set(next)
}

// Reset restores the start value.
func (v *Variable) Reset() {
	if v.shared != nil {
		v.shared.value = v.shared.start
		return
	}
	v.value = v.start
}

// Serializable reports whether the variable is written to save data.
func (v *Variable) Serializable() bool {
	return v.Type().Serializable()
}

// Bind makes v forward reads and writes to shared.
func (v *Variable) Bind(shared *Variable) error {
	if shared.Type() != v.Type() {
		return fmt.Errorf("%w: global %s is %v, local declaration is %v",
			ErrTypeMismatch, v.key, shared.Type(), v.Type())
	}
	v.shared = shared
	return nil
}

// Shared returns the global cell this variable forwards to, or nil.
func (v *Variable) Shared() *Variable { return v.shared }

func (v *Variable) String() string {
	return fmt.Sprintf("%s:%v=%v", v.key, v.Type(), v.Value())
}
