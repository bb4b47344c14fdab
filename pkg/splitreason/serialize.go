package splitreason

import (
	"encoding/json"
	"strings"
)

// Serialize renders the ledger as a JSON array of [token] or
// [token, detail] pairs in kind order, e.g.
//
//	[["overlapping_slices"],["value_sort_distance","0.3"]]
func (l *Ledger) Serialize() string {
	pairs := make([][]string, 0, l.Len())
	for _, k := range l.Kinds() {
		pair := []string{k.String()}
		if d := l.entries[k]; d != "" {
			pair = append(pair, d)
		}
		pairs = append(pairs, pair)
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		// [][]string always marshals
		panic(err)
	}
	return string(data)
}

// String implements fmt.Stringer
func (l *Ledger) String() string {
	return l.Serialize()
}

// Deserialize parses the output of Serialize. It never fails: unknown
// tokens become Unknown entries and text that is not a pair array becomes
// a single Unknown entry holding the raw text.
func Deserialize(s string) *Ledger {
	l := New()
	s = strings.TrimSpace(s)
	if s == "" {
		return l
	}

	var pairs [][]string
	if err := json.Unmarshal([]byte(s), &pairs); err != nil {
		l.Add(Unknown, s)
		return l
	}

	for _, pair := range pairs {
		if len(pair) == 0 {
			continue
		}
		kind := ParseKind(pair[0])
		detail := ""
		if len(pair) > 1 {
			detail = pair[1]
		}
		if kind == Unknown && pair[0] != Unknown.String() && detail == "" {
			detail = pair[0]
		}
		l.Add(kind, detail)
	}
	return l
}
