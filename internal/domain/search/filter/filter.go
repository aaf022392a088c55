package filter

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// MaxConditions is the maximum number of equality conditions in one expression.
const MaxConditions = 32

// Expression is a conjunction of equality conditions.
type Expression struct {
	must []Condition
}

// NewExpression validates and creates a filter Expression.
// A key may appear at most once.
func NewExpression(conds ...Condition) (Expression, error) {
	if len(conds) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	seen := make(map[string]struct{}, len(conds))
	for _, c := range conds {
		if _, dup := seen[c.key]; dup {
			return Expression{}, fmt.Errorf("duplicate filter key %q", c.key)
		}
		seen[c.key] = struct{}{}
	}
	return Expression{must: conds}, nil
}

// FromMap builds an expression from key/value pairs, ordered by key.
func FromMap(m map[string]string) (Expression, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]Condition, 0, len(keys))
	for _, k := range keys {
		c, err := NewMatch(k, m[k])
		if err != nil {
			return Expression{}, err
		}
		conds = append(conds, c)
	}
	return NewExpression(conds...)
}

// FromScalars builds an expression from decoded JSON values. Strings, numbers and booleans
// become their canonical text (3, 2.5, true); any other value is rejected.
func FromScalars(m map[string]any) (Expression, error) {
	if m == nil {
		return Expression{}, nil
	}
	values := make(map[string]string, len(m))
	for k, v := range m {
		s, err := scalarText(v)
		if err != nil {
			return Expression{}, fmt.Errorf("filter %q: %w", k, err)
		}
		values[k] = s
	}
	return FromMap(values)
}

func scalarText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return strconv.FormatInt(int64(x), 10), nil
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("value must be a string, number or boolean, got %T", v)
}

// Must returns the conditions.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// Map returns the conditions as key/value pairs.
func (e Expression) Map() map[string]string {
	if len(e.must) == 0 {
		return nil
	}
	m := make(map[string]string, len(e.must))
	for _, c := range e.must {
		m[c.key] = c.value
	}
	return m
}

// Condition is a single equality clause on a payload field.
type Condition struct {
	key   string
	value string
}

// NewMatch creates an exact match condition.
func NewMatch(key, value string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, value: value}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Value returns the exact match value.
func (c Condition) Value() string { return c.value }
