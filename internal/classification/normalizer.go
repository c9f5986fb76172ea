// Package classification maps raw product classifications onto category group keys.
//
// The same merge data drives both Normalize and SQLExpr so that rows grouped
// inside the database land in the groups the service computes in memory.
package classification

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/smallbiznis/commission/internal/config"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var integerToken = regexp.MustCompile(`[0-9]+`)

type Normalizer struct {
	uncategorized string
	codeGroups    map[int]string
	synonymGroups map[string]string
}

func New(cfg config.ClassificationConfig) *Normalizer {
	n := &Normalizer{
		uncategorized: strings.TrimSpace(cfg.UncategorizedKey),
		codeGroups:    make(map[int]string),
		synonymGroups: make(map[string]string),
	}
	if n.uncategorized == "" {
		n.uncategorized = "uncategorized"
	}

	for _, group := range cfg.MergeGroups {
		key := strings.TrimSpace(group.Key)
		if key == "" {
			continue
		}
		for _, code := range group.Codes {
			n.codeGroups[code] = key
		}
		for _, synonym := range append([]string{key}, group.Synonyms...) {
			cleaned := stripPunctuation(clean(synonym))
			if cleaned != "" {
				n.synonymGroups[cleaned] = key
			}
		}
	}
	return n
}

// Normalize returns the category group key for a raw code or name.
func (n *Normalizer) Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return n.uncategorized
	}

	if token := integerToken.FindString(raw); token != "" {
		canonical := strings.TrimLeft(token, "0")
		if canonical == "" {
			canonical = "0"
		}
		if code, err := strconv.Atoi(canonical); err == nil {
			if key, ok := n.codeGroups[code]; ok {
				return key
			}
		}
		return canonical
	}

	cleaned := clean(raw)
	if key, ok := n.synonymGroups[cleaned]; ok {
		return key
	}

	stripped := stripPunctuation(cleaned)
	if key, ok := n.synonymGroups[stripped]; ok {
		return key
	}
	if stripped == "" {
		return n.uncategorized
	}
	return stripped
}

// Groups maps every distinct raw value to its group key.
func (n *Normalizer) Groups(raws []string) map[string]string {
	out := make(map[string]string, len(raws))
	for _, raw := range raws {
		out[raw] = n.Normalize(raw)
	}
	return out
}

// clean strips diacritics, lowercases and collapses whitespace.
func clean(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

func stripPunctuation(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
