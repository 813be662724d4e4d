// Package condition implements the restricted comparison language used by
// decision nodes. The language supports exactly four forms, checked in
// priority order: numeric ">", numeric "<", textual "==", and textual "!=".
//
// Two fallbacks are part of the contract: an expression with no recognized
// operator or parseable operands evaluates to true, and a runtime failure
// evaluates to false with the error reported to the caller.
package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
)

// Evaluate resolves an expression against the given variable bindings.
// A non-nil error means a runtime failure; the caller must treat the
// result as false and record the error.
func Evaluate(expression string, variables map[string]models.Variable) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("condition %q: %v", expression, r)
		}
	}()

	substituted := substitute(expression, variables)
	sanitized := sanitize(substituted)

	if lhs, rhs, found := splitOperator(sanitized, ">"); found {
		return compareNumeric(lhs, rhs, func(a, b float64) bool { return a > b })
	}

	if lhs, rhs, found := splitOperator(sanitized, "<"); found {
		return compareNumeric(lhs, rhs, func(a, b float64) bool { return a < b })
	}

	if lhs, rhs, found := splitOperator(sanitized, "=="); found {
		return strings.TrimSpace(lhs) == strings.TrimSpace(rhs), nil
	}

	if lhs, rhs, found := splitOperator(sanitized, "!="); found {
		return strings.TrimSpace(lhs) != strings.TrimSpace(rhs), nil
	}

	// No recognized operator left: the expression is not a comparison,
	// so the branch defaults to true.
	return true, nil
}

// substitute replaces each whole-word occurrence of a known variable name
// with its value rendered as a literal.
func substitute(expression string, variables map[string]models.Variable) string {
	var out strings.Builder

	runes := []rune(expression)
	for i := 0; i < len(runes); {
		if !isIdentStart(runes[i]) {
			out.WriteRune(runes[i])
			i++

			continue
		}

		j := i + 1
		for j < len(runes) && isIdentPart(runes[j]) {
			j++
		}

		word := string(runes[i:j])
		if variable, ok := variables[word]; ok {
			out.WriteString(renderLiteral(variable))
		} else {
			out.WriteString(word)
		}

		i = j
	}

	return out.String()
}

// renderLiteral renders a variable value the way it would be written in an
// expression: strings quoted, everything else in its natural text form.
func renderLiteral(variable models.Variable) string {
	switch value := variable.Value.(type) {
	case string:
		return strconv.Quote(value)
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}

		return string(encoded)
	}
}

// sanitize drops every character outside the allowed set: digits,
// arithmetic and comparison operators, logical connectives, parentheses,
// double quotes, and whitespace.
func sanitize(expression string) string {
	var out strings.Builder

	for _, r := range expression {
		switch {
		case r >= '0' && r <= '9':
			out.WriteRune(r)
		case strings.ContainsRune(`+-*/<>=!&|()"`, r):
			out.WriteRune(r)
		case unicode.IsSpace(r):
			out.WriteRune(r)
		}
	}

	return out.String()
}

// splitOperator splits the expression at the first occurrence of op.
func splitOperator(expression, op string) (string, string, bool) {
	idx := strings.Index(expression, op)
	if idx < 0 {
		return "", "", false
	}

	return expression[:idx], expression[idx+len(op):], true
}

// compareNumeric parses both operands as numbers. Unparseable operands make
// the whole expression fall back to true.
func compareNumeric(lhs, rhs string, cmp func(a, b float64) bool) (bool, error) {
	left, leftErr := strconv.ParseFloat(strings.TrimSpace(lhs), 64)
	right, rightErr := strconv.ParseFloat(strings.TrimSpace(rhs), 64)

	if leftErr != nil || rightErr != nil {
		return true, nil
	}

	return cmp(left, right), nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
