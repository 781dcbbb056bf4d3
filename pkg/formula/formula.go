// Package formula formats and parses model formulas of the form
// "response ~ a + b + c".
package formula

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFormula is returned for text that is not "response ~ terms".
var ErrInvalidFormula = errors.New("formula: invalid formula")

// Formula is a parsed model formula. Terms may contain "." until resolved.
type Formula struct {
	Response string
	Terms    []string
}

// Format renders response ~ p1 + p2 + ... .
func Format(response string, predictors []string) string {
	return response + " ~ " + strings.Join(predictors, " + ")
}

// Parse reads "response ~ term + term". Whitespace is ignored around names and
// repeated terms are kept once, in first-seen order.
func Parse(s string) (Formula, error) {
	lhs, rhs, ok := strings.Cut(s, "~")
	if !ok {
		return Formula{}, fmt.Errorf("%w: missing '~' in %q", ErrInvalidFormula, s)
	}
	response := strings.TrimSpace(lhs)
	if response == "" || strings.ContainsAny(response, "+~ \t") {
		return Formula{}, fmt.Errorf("%w: bad response %q", ErrInvalidFormula, lhs)
	}

	var terms []string
	seen := map[string]bool{}
	for _, part := range strings.Split(rhs, "+") {
		term := strings.TrimSpace(part)
		if term == "" || strings.ContainsAny(term, "~ \t") {
			return Formula{}, fmt.Errorf("%w: bad term %q in %q", ErrInvalidFormula, part, s)
		}
		if seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}
	return Formula{Response: response, Terms: terms}, nil
}

// String formats the formula back to text.
func (f Formula) String() string { return Format(f.Response, f.Terms) }

// Resolve expands "." to every column except the response and checks that each
// term names an available column. The result keeps term order; "." contributes
// columns in their given order.
func (f Formula) Resolve(columns []string) ([]string, error) {
	available := make(map[string]bool, len(columns))
	for _, c := range columns {
		available[c] = true
	}

	var out []string
	seen := map[string]bool{f.Response: true}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, term := range f.Terms {
		if term == "." {
			for _, c := range columns {
				add(c)
			}
			continue
		}
		if term == f.Response {
			return nil, fmt.Errorf("%w: response %q used as a predictor", ErrInvalidFormula, term)
		}
		if !available[term] {
			return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidFormula, term)
		}
		add(term)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no predictors in %q", ErrInvalidFormula, f.String())
	}
	return out, nil
}
