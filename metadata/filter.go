package metadata

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/vecsim/model"
)

// Operator represents a comparison operator for filtering.
type Operator string

const (
	// OpEqual represents the equality operator.
	OpEqual Operator = "eq"
	// OpNotEqual represents the inequality operator.
	OpNotEqual Operator = "ne"
	// OpIn represents the in list operator.
	OpIn Operator = "in"
	// OpContains represents the contains substring operator.
	OpContains Operator = "contains"
	// OpPrefix represents the prefix operator.
	OpPrefix Operator = "prefix"
	// OpExists matches any record carrying the key.
	OpExists Operator = "exists"
)

// Filter is a single predicate on one metadata key.
type Filter struct {
	Key      string
	Operator Operator
	Value    string
	Values   []string // OpIn only
}

// Eq matches records whose key equals value.
func Eq(key, value string) Filter { return Filter{Key: key, Operator: OpEqual, Value: value} }

// Ne matches records that carry key with a value other than value.
func Ne(key, value string) Filter { return Filter{Key: key, Operator: OpNotEqual, Value: value} }

// In matches records whose key equals any of values.
func In(key string, values ...string) Filter {
	return Filter{Key: key, Operator: OpIn, Values: values}
}

// Contains matches records whose key contains substr.
func Contains(key, substr string) Filter {
	return Filter{Key: key, Operator: OpContains, Value: substr}
}

// Prefix matches records whose key starts with prefix.
func Prefix(key, prefix string) Filter {
	return Filter{Key: key, Operator: OpPrefix, Value: prefix}
}

// Exists matches records that carry key.
func Exists(key string) Filter { return Filter{Key: key, Operator: OpExists} }

// Matches checks if the provided metadata matches this filter.
// A missing key never matches.
func (f Filter) Matches(md map[string]string) bool {
	value, exists := md[f.Key]
	if !exists {
		return false
	}
	return f.matchValue(value)
}

func (f Filter) matchValue(value string) bool {
	switch f.Operator {
	case OpEqual:
		return value == f.Value
	case OpNotEqual:
		return value != f.Value
	case OpIn:
		return slices.Contains(f.Values, value)
	case OpContains:
		return strings.Contains(value, f.Value)
	case OpPrefix:
		return strings.HasPrefix(value, f.Value)
	case OpExists:
		return true
	default:
		return false
	}
}

// Validate reports malformed filters.
func (f Filter) Validate() error {
	if f.Key == "" {
		return model.InvalidArgument("filter key must not be empty")
	}
	switch f.Operator {
	case OpEqual, OpNotEqual, OpContains, OpPrefix, OpExists:
		return nil
	case OpIn:
		if len(f.Values) == 0 {
			return model.InvalidArgument("filter %q: in requires at least one value", f.Key)
		}
		return nil
	default:
		return model.InvalidArgument("filter %q: unknown operator %q", f.Key, f.Operator)
	}
}

func (f Filter) String() string {
	switch f.Operator {
	case OpIn:
		return fmt.Sprintf("%s in (%s)", f.Key, strings.Join(f.Values, ","))
	case OpExists:
		return fmt.Sprintf("exists(%s)", f.Key)
	default:
		return fmt.Sprintf("%s %s %q", f.Key, f.Operator, f.Value)
	}
}

// FilterSet combines filters with logical AND.
// A nil or empty FilterSet matches everything.
type FilterSet struct {
	Filters []Filter
}

// And builds a FilterSet from filters.
func And(filters ...Filter) *FilterSet {
	return &FilterSet{Filters: filters}
}

// IsEmpty reports whether fs filters nothing out.
func (fs *FilterSet) IsEmpty() bool {
	return fs == nil || len(fs.Filters) == 0
}

// Matches checks if the provided metadata matches all filters in the set.
func (fs *FilterSet) Matches(md map[string]string) bool {
	if fs == nil {
		return true
	}
	for _, filter := range fs.Filters {
		if !filter.Matches(md) {
			return false
		}
	}
	return true
}

// Validate validates every filter in the set.
func (fs *FilterSet) Validate() error {
	if fs == nil {
		return nil
	}
	for _, f := range fs.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FilterSet) String() string {
	if fs.IsEmpty() {
		return "*"
	}
	parts := make([]string, len(fs.Filters))
	for i, f := range fs.Filters {
		parts[i] = f.String()
	}
	return strings.Join(parts, " AND ")
}
