// Package filter classifies comment text into approved, pending review or
// rejected.
package filter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"countyportal/internal/langdetect"
	"countyportal/internal/wordlist"
)

const (
	DefaultMinWords = 3
	DefaultMaxWords = 100
)

type term struct {
	word string
	re   *regexp.Regexp
}

// Engine holds compiled matchers for one word-list snapshot.
type Engine struct {
	banned   []term
	flagged  []term
	detector langdetect.Detector
	minWords int
	maxWords int
	logger   *zap.Logger
}

type Option func(*Engine)

func WithWordLimits(lo, hi int) Option {
	return func(e *Engine) {
		e.minWords, e.maxWords = lo, hi
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(list wordlist.WordList, detector langdetect.Detector, opts ...Option) *Engine {
	if detector == nil {
		detector = langdetect.Heuristic{}
	}
	e := &Engine{
		banned:   compile(list.Banned),
		flagged:  compile(list.Flagged),
		detector: detector,
		minWords: DefaultMinWords,
		maxWords: DefaultMaxWords,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// FilterComment runs length, banned, flagged and language checks in that
// order and returns the first verdict produced.
func (e *Engine) FilterComment(ctx context.Context, text string) (v Verdict) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("comment filter failed", zap.Any("panic", r))
			v = failSafe()
		}
	}()

	words := strings.Fields(text)
	n := len(words)
	if n < e.minWords {
		return Verdict{
			Status:    StatusRejected,
			Message:   fmt.Sprintf("Comment must contain at least %d words.", e.minWords),
			Reason:    ReasonLength,
			WordCount: n,
		}
	}
	if n > e.maxWords {
		return Verdict{
			Status:    StatusRejected,
			Message:   fmt.Sprintf("Comment cannot exceed %d words. Current word count: %d", e.maxWords, n),
			Reason:    ReasonLength,
			WordCount: n,
		}
	}

	folded := fold(strings.Join(words, " "))
	if hits := match(e.banned, folded); len(hits) > 0 {
		return Verdict{Status: StatusRejected, Message: msgBanned, Reason: ReasonBanned, MatchedTerms: hits, WordCount: n}
	}
	if hits := match(e.flagged, folded); len(hits) > 0 {
		return Verdict{Status: StatusPendingReview, Message: msgFlagged, Reason: ReasonFlagged, MatchedTerms: hits, WordCount: n}
	}

	res, err := e.detector.Detect(ctx, text)
	if err != nil {
		e.logger.Warn("language detection failed", zap.Error(err))
		res = langdetect.Result{Language: langdetect.Unknown}
	}
	if res.Language == "" {
		res.Language = langdetect.Unknown
	}
	if !langdetect.Supported(res.Language) {
		return Verdict{
			Status:           StatusPendingReview,
			Message:          msgLanguage,
			Reason:           ReasonLanguage,
			DetectedLanguage: res.Language,
			LanguageSource:   res.Source,
			WordCount:        n,
		}
	}
	return Verdict{
		Status:           StatusApproved,
		Message:          msgApproved,
		Reason:           ReasonClean,
		DetectedLanguage: res.Language,
		LanguageSource:   res.Source,
		WordCount:        n,
	}
}

// BannedCount and FlaggedCount report the usable terms in the snapshot.
func (e *Engine) BannedCount() int  { return len(e.banned) }
func (e *Engine) FlaggedCount() int { return len(e.flagged) }

func compile(words []string) []term {
	out := make([]term, 0, len(words))
	seen := map[string]struct{}{}
	for _, w := range words {
		f := fold(strings.Join(strings.Fields(w), " "))
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		re := regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(f) + `(?:$|[^\p{L}\p{N}_])`)
		out = append(out, term{word: f, re: re})
	}
	return out
}

func match(terms []term, text string) []string {
	var hits []string
	for _, t := range terms {
		if t.re.MatchString(text) {
			hits = append(hits, t.word)
		}
	}
	return hits
}

// fold lower-cases and strips combining marks so "Scám" matches "scam".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
