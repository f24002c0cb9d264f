// Package filter implements the notice matching engine.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"homeboard/internal/model"
)

type rule struct {
	kind  model.FilterKind
	scope model.FilterScope
	word  string
	re    *regexp.Regexp
}

// Rules is a compiled, immutable set of include/exclude filters.
type Rules struct {
	rules       []rule
	hasIncludes bool
}

// Compile validates filters and prepares them for matching.
// Regex filters are case-insensitive; word filters match substrings
// case-insensitively.
func Compile(filters []model.Filter) (*Rules, error) {
	rs := &Rules{rules: make([]rule, 0, len(filters))}
	for _, f := range filters {
		r := rule{kind: f.Kind, scope: f.Scope}
		switch f.Kind {
		case model.FilterInclude, model.FilterExclude:
			r.word = strings.ToLower(f.Value)
		case model.FilterIncludeRe, model.FilterExcludeRe:
			re, err := regexp.Compile("(?i)" + f.Value)
			if err != nil {
				return nil, fmt.Errorf("invalid regex %q: %w", f.Value, err)
			}
			r.re = re
		default:
			return nil, fmt.Errorf("unknown filter kind %q", f.Kind)
		}
		if f.Kind == model.FilterInclude || f.Kind == model.FilterIncludeRe {
			rs.hasIncludes = true
		}
		rs.rules = append(rs.rules, r)
	}
	return rs, nil
}

// MustCompile is like Compile but panics on invalid filters. It is meant for
// rule sets fixed at build time.
func MustCompile(filters []model.Filter) *Rules {
	rs, err := Compile(filters)
	if err != nil {
		panic(err)
	}
	return rs
}

// Match checks whether a title/content pair passes the rules.
// An empty rule set passes everything. Include rules use OR logic,
// exclude rules veto.
func (rs *Rules) Match(title, content string) bool {
	if rs == nil || len(rs.rules) == 0 {
		return true
	}

	anyIncludeMatched := false
	for _, r := range rs.rules {
		hit := r.matches(title, content)
		switch r.kind {
		case model.FilterExclude, model.FilterExcludeRe:
			if hit {
				return false
			}
		default:
			anyIncludeMatched = anyIncludeMatched || hit
		}
	}
	return !rs.hasIncludes || anyIncludeMatched
}

func (r rule) matches(title, content string) bool {
	text := textForScope(title, content, r.scope)
	if r.re != nil {
		return r.re.MatchString(text)
	}
	return strings.Contains(strings.ToLower(text), r.word)
}

func textForScope(title, content string, scope model.FilterScope) string {
	switch scope {
	case model.ScopeTitle:
		return title
	case model.ScopeContent:
		return content
	default:
		return title + " " + content
	}
}
