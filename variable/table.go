package variable

import (
	"fmt"
	"regexp"
)

// Table is an ordered set of variables with unique keys.
type Table struct {
	vars  []*Variable
	byKey map[string]*Variable
}

func NewTable() *Table {
	return &Table{byKey: make(map[string]*Variable)}
}

// Declare adds v. Keys are unique within one table.
func (t *Table) Declare(v *Variable) error {
	if _, exists := t.byKey[v.key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, v.key)
	}
	t.vars = append(t.vars, v)
	t.byKey[v.key] = v
	return nil
}

// Lookup returns the variable with the given key.
func (t *Table) Lookup(key string) (*Variable, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.byKey[key]
	return v, ok
}

// Get returns the variable with the given key, or nil.
func (t *Table) Get(key string) *Variable {
	v, _ := t.Lookup(key)
	return v
}

// GetOrAdd returns the variable with the given key, declaring it with start
// value init if absent. Used for the global table.
func (t *Table) GetOrAdd(key string, init Value) *Variable {
	if v, ok := t.byKey[key]; ok {
		return v
	}
	v := NewScoped(key, Global, init)
	t.vars = append(t.vars, v)
	t.byKey[key] = v
	return v
}

func (t *Table) Remove(key string) bool {
	if _, ok := t.byKey[key]; !ok {
		return false
	}
	delete(t.byKey, key)
	for i, v := range t.vars {
		if v.key == key {
			t.vars = append(t.vars[:i], t.vars[i+1:]...)
			break
		}
	}
	return true
}

// All returns the variables in declaration order.
func (t *Table) All() []*Variable {
	if t == nil {
		return nil
	}
	out := make([]*Variable, len(t.vars))
	copy(out, t.vars)
	return out
}

func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, len(t.vars))
	for i, v := range t.vars {
		keys[i] = v.key
	}
	return keys
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.vars)
}

// Reset restores every variable to its start value.
func (t *Table) Reset() {
	if t == nil {
		return
	}
	for _, v := range t.vars {
		v.Reset()
	}
}

// ---------------------------------------------------------------------------
// Substitution
// ---------------------------------------------------------------------------

var substitutionPattern = regexp.MustCompile(`\{\$([^{}\s]+)\}`)

// Substitute replaces {$key} tokens in text with the current value of the
// variable found by lookup. Unknown keys are left untouched.
func Substitute(text string, lookup func(key string) (*Variable, bool)) string {
	return substitutionPattern.ReplaceAllStringFunc(text, func(tok string) string {
		key := tok[2 : len(tok)-1]
		if v, ok := lookup(key); ok {
			return v.Value().String()
		}
		return tok
	})
}
