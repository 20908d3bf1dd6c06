package store

import "errors"

// ErrFilterConflict is returned when a company clause would contradict one
// already present. The company filter is additive, never a replacement; a
// second clause with a different value is always a bug or an attack.
var ErrFilterConflict = errors.New("store: conflicting company filter")

// Clause is one equality condition.
type Clause struct {
	Column string
	Value  any
}

// Filter is an ordered conjunction of equality clauses. Values bind as query
// placeholders; columns are validated by the store implementation. The zero
// value matches everything.
type Filter struct {
	clauses []Clause
}

// Eq returns a copy of the filter with an extra equality clause.
func (f Filter) Eq(column string, value any) Filter {
	clauses := make([]Clause, len(f.clauses), len(f.clauses)+1)
	copy(clauses, f.clauses)
	return Filter{clauses: append(clauses, Clause{Column: column, Value: value})}
}

// Clauses returns the conditions in order.
func (f Filter) Clauses() []Clause {
	out := make([]Clause, len(f.clauses))
	copy(out, f.clauses)
	return out
}

// Len reports the number of clauses.
func (f Filter) Len() int { return len(f.clauses) }

// Company returns the value of the company clause, if one is present.
func (f Filter) Company() (string, bool) {
	for _, c := range f.clauses {
		if c.Column == CompanyColumn {
			v, _ := c.Value.(string)
			return v, true
		}
	}
	return "", false
}

// WithCompany adds the company clause if absent. A matching clause is left
// alone; a contradicting one fails with ErrFilterConflict instead of being
// silently replaced.
func (f Filter) WithCompany(companyID string) (Filter, error) {
	if existing, ok := f.Company(); ok {
		if existing != companyID {
			return Filter{}, ErrFilterConflict
		}
		return f, nil
	}
	return f.Eq(CompanyColumn, companyID), nil
}
