package classification

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

var columnName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

var (
	ErrInvalidColumn          = errors.New("invalid_classification_column")
	ErrUnmappedClassification = errors.New("unmapped_classification")
)

// UnmappedKey is what SQLExpr yields for a value missing from its vocabulary.
// Cleaned text never produces it since underscores are stripped as punctuation.
const UnmappedKey = "__unmapped__"

// SQLExpr builds a CASE expression over column that yields, for every value in
// vocabulary, the key Normalize returns for it. Values outside the vocabulary
// yield UnmappedKey, so callers pass the full set of raw values they are about
// to group (configured codes plus the distinct ledger codes) and treat
// UnmappedKey in the result as ErrUnmappedClassification.
func (n *Normalizer) SQLExpr(column string, vocabulary []string) (string, []any, error) {
	if !columnName.MatchString(column) {
		return "", nil, ErrInvalidColumn
	}

	byKey := make(map[string][]string)
	seen := make(map[string]struct{}, len(vocabulary))
	for _, raw := range vocabulary {
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		key := n.Normalize(raw)
		byKey[key] = append(byKey[key], raw)
	}

	var b strings.Builder
	args := make([]any, 0, 2+2*len(byKey))

	b.WriteString("CASE WHEN ")
	b.WriteString(column)
	b.WriteString(" IS NULL OR TRIM(")
	b.WriteString(column)
	b.WriteString(") = '' THEN ?")
	args = append(args, n.uncategorized)

	for _, key := range sortedKeys(byKey) {
		raws := byKey[key]
		sort.Strings(raws)
		b.WriteString(" WHEN ")
		b.WriteString(column)
		b.WriteString(" IN ? THEN ?")
		args = append(args, raws, key)
	}

	b.WriteString(" ELSE ? END")
	args = append(args, UnmappedKey)

	return b.String(), args, nil
}
