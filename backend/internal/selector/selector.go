// Package selector parses post selections such as "1-6,8,u".
package selector

import (
	"sort"
	"strconv"
	"strings"

	errs "github.com/itchan-dev/bbs/shared/errors"
)

type span struct {
	lo, hi int
}

// Selection is a parsed selector. Ranges are kept as bounds and only matched
// against existing ordinals, so "1-1000000000" costs nothing.
type Selection struct {
	spans  []span
	unread bool
	input  string
}

// Parse reads comma-separated tokens: a non-negative integer, an inclusive
// range "lo-hi" in either order, or "u" (case-insensitive) for the caller's
// unread posts.
func Parse(input string) (*Selection, error) {
	sel := &Selection{input: input}
	tokens := 0
	for _, raw := range strings.Split(input, ",") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		tokens++

		if strings.EqualFold(tok, "u") {
			sel.unread = true
			continue
		}
		if lo, hi, isRange := strings.Cut(tok, "-"); isRange {
			a, errA := parseOrdinal(lo)
			b, errB := parseOrdinal(hi)
			if errA != nil || errB != nil {
				return nil, invalidToken(tok)
			}
			if a > b {
				a, b = b, a
			}
			sel.spans = append(sel.spans, span{a, b})
			continue
		}
		n, err := parseOrdinal(tok)
		if err != nil {
			return nil, invalidToken(tok)
		}
		sel.spans = append(sel.spans, span{n, n})
	}
	if tokens == 0 {
		return nil, &errs.Error{Kind: errs.KindEmptySelector, Resource: "selector", Value: input,
			Message: "No posts entered to check"}
	}
	return sel, nil
}

// WantsUnread reports whether the selection contains "u".
func (s *Selection) WantsUnread() bool {
	return s.unread
}

func (s *Selection) String() string {
	return s.input
}

// Contains reports whether n is named by a number or range token.
func (s *Selection) Contains(n int) bool {
	for _, sp := range s.spans {
		if n >= sp.lo && n <= sp.hi {
			return true
		}
	}
	return false
}

// Resolve intersects the selection with the existing ordinals, substituting
// unread for "u". The result is sorted and free of duplicates.
func (s *Selection) Resolve(existing, unread []int) ([]int, error) {
	present := make(map[int]struct{}, len(existing))
	for _, n := range existing {
		present[n] = struct{}{}
	}

	picked := make(map[int]struct{})
	for n := range present {
		if s.Contains(n) {
			picked[n] = struct{}{}
		}
	}
	if s.unread {
		for _, n := range unread {
			if _, ok := present[n]; ok {
				picked[n] = struct{}{}
			}
		}
	}

	if len(picked) == 0 {
		return nil, &errs.Error{Kind: errs.KindNoMatches, Resource: "post", Value: s.input,
			Message: "Posts not found for '" + s.input + "'"}
	}
	result := make([]int, 0, len(picked))
	for n := range picked {
		result = append(result, n)
	}
	sort.Ints(result)
	return result, nil
}

func parseOrdinal(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

func invalidToken(tok string) error {
	return errs.InvalidArgument("selector", tok, "Invalid post selection '"+tok+"'")
}
