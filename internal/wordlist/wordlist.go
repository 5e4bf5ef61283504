// Package wordlist persists the banned and flagged term lists used by the
// comment filter.
package wordlist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// WordList keeps terms with their original casing. Matching lower-cases at
// evaluation time.
type WordList struct {
	Banned  []string `json:"banned_words"`
	Flagged []string `json:"flagged_words"`
}

type Store interface {
	// Load never fails. A missing or unreadable document yields an empty list.
	Load(ctx context.Context) WordList
	Replace(ctx context.Context, banned, flagged []string) error
}

// Normalize trims every line, drops blanks and drops exact repeats keeping
// the first occurrence.
func Normalize(lines []string) []string {
	out := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// ParseLines splits a textarea body into one term per line.
func ParseLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return Normalize(strings.Split(text, "\n"))
}

func encode(banned, flagged []string) ([]byte, error) {
	doc := WordList{Banned: Normalize(banned), Flagged: Normalize(flagged)}
	b, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode word list: %w", err)
	}
	return b, nil
}

func decode(b []byte) (WordList, error) {
	var doc WordList
	if err := json.Unmarshal(b, &doc); err != nil {
		return WordList{}, err
	}
	doc.Banned = Normalize(doc.Banned)
	doc.Flagged = Normalize(doc.Flagged)
	return doc, nil
}
