package inventory

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	// DefaultTop is the page size used when none is requested. Resource Graph caps pages at 1000.
	DefaultTop = 1000
	MaxTop     = 1000
)

// ErrInvalidQuery is returned for descriptors that cannot be sent upstream.
var ErrInvalidQuery = errors.New("invalid query")

// Descriptor selects virtual machines by name. Terms are literal names, or
// regular expressions when RegexpMode is set; a VM matches when any term does.
type Descriptor struct {
	Terms             []string
	RegexpMode        bool
	IncludeExtensions bool
	IncludeTags       bool
	// Subscriptions limits the query to these subscription IDs. Empty means every accessible subscription.
	Subscriptions []string
	// Skip is the offset of the first record returned.
	Skip int
	// Top is the page size used while paging.
	Top int
}

// Validate rejects an empty term set and, in regexp mode, patterns that do not compile.
func (d Descriptor) Validate() error {
	if len(normalizeTerms(d.Terms, d.RegexpMode)) == 0 {
		return fmt.Errorf("%w: at least one name or pattern is required", ErrInvalidQuery)
	}
	if d.Skip < 0 {
		return fmt.Errorf("%w: skip must not be negative", ErrInvalidQuery)
	}
	if d.Top < 0 || d.Top > MaxTop {
		return fmt.Errorf("%w: top must be between 1 and %d", ErrInvalidQuery, MaxTop)
	}
	if d.RegexpMode {
		for _, term := range normalizeTerms(d.Terms, d.RegexpMode) {
			if _, err := regexp.Compile(term); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
			}
		}
	}
	return nil
}

// Normalize returns the canonical form of d: terms trimmed, lower-cased,
// sorted and de-duplicated, subscriptions sorted, and Top defaulted. Patterns
// are folded with foldPattern so escapes like \D and \d stay distinct.
func (d Descriptor) Normalize() Descriptor {
	out := d
	out.Terms = normalizeTerms(d.Terms, d.RegexpMode)
	out.Subscriptions = normalizeSubscriptions(d.Subscriptions)
	if out.Top == 0 {
		out.Top = DefaultTop
	}
	return out
}

// Matcher returns a predicate applying the descriptor to a VM name. Names are
// lower-cased before comparison, the same way the remote query compares them.
func (d Descriptor) Matcher() (func(name string) bool, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	terms := normalizeTerms(d.Terms, d.RegexpMode)
	if !d.RegexpMode {
		set := make(map[string]struct{}, len(terms))
		for _, term := range terms {
			set[term] = struct{}{}
		}
		return func(name string) bool {
			_, ok := set[strings.ToLower(name)]
			return ok
		}, nil
	}
	patterns := make([]*regexp.Regexp, 0, len(terms))
	for _, term := range terms {
		patterns = append(patterns, regexp.MustCompile(term))
	}
	return func(name string) bool {
		lower := strings.ToLower(name)
		for _, re := range patterns {
			if re.MatchString(lower) {
				return true
			}
		}
		return false
	}, nil
}

func normalizeTerms(terms []string, regexpMode bool) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if regexpMode {
			term = foldPattern(term)
		} else {
			term = strings.ToLower(term)
		}
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// foldPattern lower-cases the literal parts of a regular expression. Escape
// sequences, Unicode class names and flag groups are copied unchanged, so the
// folded pattern matches the lower-cased form of what the original matched
// case-insensitively.
func foldPattern(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	rs := []rune(p)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '\\' && i+1 < len(rs):
			i++
			b.WriteRune(r)
			b.WriteRune(rs[i])
			switch rs[i] {
			case 'p', 'P', 'x':
				if i+1 < len(rs) && rs[i+1] == '{' {
					for i+1 < len(rs) {
						i++
						b.WriteRune(rs[i])
						if rs[i] == '}' {
							break
						}
					}
				} else if rs[i] != 'x' && i+1 < len(rs) {
					i++
					b.WriteRune(rs[i])
				}
			}
		case r == '(' && i+1 < len(rs) && rs[i+1] == '?':
			// flags such as (?U) are case-sensitive
			for i < len(rs) {
				b.WriteRune(rs[i])
				if rs[i] == ')' || rs[i] == ':' || rs[i] == '<' {
					break
				}
				i++
			}
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func normalizeSubscriptions(subs []string) []string {
	if len(subs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(subs))
	out := make([]string, 0, len(subs))
	for _, sub := range subs {
		sub = strings.ToLower(strings.TrimSpace(sub))
		if sub == "" {
			continue
		}
		if _, ok := seen[sub]; ok {
			continue
		}
		seen[sub] = struct{}{}
		out = append(out, sub)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
