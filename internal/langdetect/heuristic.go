package langdetect

import (
	"context"
	"strings"
	"unicode"
)

var swahiliIndicators = toSet(
	"habari", "asante", "karibu", "hujambo", "pole", "sawa", "ndiyo", "hapana",
	"kitu", "mtu", "watu", "nyumba", "shule", "kazi", "pesa", "chakula", "maji",
	"jina", "hali", "mahali", "wakati", "siku", "wiki", "mwezi", "mwaka", "leo",
	"jana", "kesho", "asubuhi", "mchana", "jioni", "usiku", "ninyi", "wewe",
	"yeye", "sisi", "mimi", "wao", "hii", "hiyo", "hizi", "na", "ya", "wa", "za",
	"la", "cha", "kwa", "katika", "kwenye",
)

var englishIndicators = toSet(
	"the", "and", "is", "are", "was", "were", "have", "has", "had", "will",
	"would", "could", "should", "can", "may", "must", "shall", "this", "that",
	"these", "those", "with", "from", "they", "them", "their", "there", "where",
	"when", "what", "why", "how", "who",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Heuristic counts whole-word hits from fixed indicator lists. It never
// fails.
type Heuristic struct{}

func (Heuristic) Detect(ctx context.Context, text string) (Result, error) {
	_ = ctx
	sw, en := 0, 0
	for _, tok := range tokenize(text) {
		if _, ok := swahiliIndicators[tok]; ok {
			sw++
		}
		if _, ok := englishIndicators[tok]; ok {
			en++
		}
	}
	res := Result{Language: Unknown, Source: SourceHeuristic}
	switch {
	case sw >= 1 && sw > en:
		res.Language = Swahili
	case en >= 1:
		res.Language = English
	}
	if total := sw + en; total > 0 {
		hits := en
		if res.Language == Swahili {
			hits = sw
		}
		res.Confidence = float64(hits) / float64(total)
	}
	return res, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}
