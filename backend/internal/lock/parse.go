package lock

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseError describes why a lock string was rejected.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid lock string '%s': %s", e.Input, e.Reason)
}

// Parse turns a lock string into Locks. Entries are separated by ';', each is
// "capability:expression". A repeated capability replaces the earlier one, the
// way adding locks to an existing set behaves.
func Parse(input string) (Locks, error) {
	locks := make(Locks)
	for _, entry := range strings.Split(input, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, expr, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, &ParseError{input, fmt.Sprintf("entry '%s' has no ':'", entry)}
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if !isWord(name) {
			return nil, &ParseError{input, fmt.Sprintf("bad capability name '%s'", name)}
		}
		pred, err := parseExpr(strings.TrimSpace(expr))
		if err != nil {
			return nil, &ParseError{input, err.Error()}
		}
		locks[Capability(name)] = pred
	}
	return locks, nil
}

// parseExpr handles "a or b and c": or-separated groups of and-separated terms.
func parseExpr(expr string) (Predicate, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}
	var anyOf AnyOf
	for _, group := range splitKeyword(expr, "or") {
		var allOf AllOf
		for _, term := range splitKeyword(group, "and") {
			p, err := parseTerm(term)
			if err != nil {
				return nil, err
			}
			allOf = append(allOf, p)
		}
		if len(allOf) == 1 {
			anyOf = append(anyOf, allOf[0])
		} else {
			anyOf = append(anyOf, allOf)
		}
	}
	if len(anyOf) == 1 {
		return anyOf[0], nil
	}
	return anyOf, nil
}

func parseTerm(term string) (Predicate, error) {
	term = strings.TrimSpace(term)
	open := strings.IndexByte(term, '(')
	if open <= 0 || !strings.HasSuffix(term, ")") {
		return nil, fmt.Errorf("term '%s' is not a function call", term)
	}
	fn := strings.ToLower(strings.TrimSpace(term[:open]))
	rawArgs := strings.TrimSpace(term[open+1 : len(term)-1])
	var args []string
	if rawArgs != "" {
		for _, a := range strings.Split(rawArgs, ",") {
			a = strings.TrimSpace(a)
			if !isWord(a) {
				return nil, fmt.Errorf("bad argument '%s' in '%s'", a, term)
			}
			args = append(args, a)
		}
	}

	switch fn {
	case "all", "true":
		if len(args) != 0 {
			return nil, fmt.Errorf("%s() takes no arguments", fn)
		}
		return True, nil
	case "none", "false":
		if len(args) != 0 {
			return nil, fmt.Errorf("%s() takes no arguments", fn)
		}
		return False, nil
	case "perm":
		if len(args) == 0 {
			return nil, fmt.Errorf("perm() needs at least one permission")
		}
		return PermAny(args), nil
	case "perm_all":
		if len(args) == 0 {
			return nil, fmt.Errorf("perm_all() needs at least one permission")
		}
		return PermAll(args), nil
	default:
		return nil, fmt.Errorf("unknown lock function '%s'", fn)
	}
}

// splitKeyword splits on a whitespace-delimited keyword outside parentheses.
func splitKeyword(s, keyword string) []string {
	var parts []string
	depth, start, n := 0, 0, len(s)
	for i := 0; i < n; i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth != 0 || i == 0 || s[i-1] != ' ' {
			continue
		}
		end := i + len(keyword)
		if end < n && strings.EqualFold(s[i:end], keyword) && s[end] == ' ' {
			parts = append(parts, s[start:i])
			start = end
			i = end
		}
	}
	return append(parts, s[start:])
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// Validate parses a lock string and checks that it only names capabilities in
// allowed.
func Validate(input string, allowed []Capability) (Locks, error) {
	locks, err := Parse(input)
	if err != nil {
		return nil, err
	}
	if len(locks) == 0 {
		return nil, &ParseError{input, "no lock entries"}
	}
	for c := range locks {
		if !containsCapability(allowed, c) {
			return nil, &ParseError{input, fmt.Sprintf("capability '%s' does not apply here", c)}
		}
	}
	return locks, nil
}

// Merge overlays update on top of base, the way adding locks to a resource
// replaces only the named capabilities.
func Merge(base, update string) (string, error) {
	b, err := Parse(base)
	if err != nil {
		return "", err
	}
	u, err := Parse(update)
	if err != nil {
		return "", err
	}
	for c, p := range u {
		b[c] = p
	}
	return b.String(), nil
}

func containsCapability(list []Capability, c Capability) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}
