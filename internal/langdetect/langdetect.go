// Package langdetect classifies comment text as English, Kiswahili or
// unknown.
package langdetect

import (
	"context"
	"errors"
)

const (
	English = "en"
	Swahili = "sw"
	Unknown = "unknown"

	SourceService   = "service"
	SourceHeuristic = "heuristic"
)

var (
	ErrUnavailable   = errors.New("language detection unavailable")
	ErrLowConfidence = errors.New("language detection below confidence threshold")
)

type Result struct {
	Language   string
	Confidence float64
	Source     string
}

type Detector interface {
	Detect(ctx context.Context, text string) (Result, error)
}

// Supported reports whether comments in lang are published without review.
func Supported(lang string) bool {
	return lang == English || lang == Swahili
}

// SupportedLanguages lists the accepted codes in display order.
func SupportedLanguages() []string { return []string{English, Swahili} }

// Fallback answers from Primary and consults Secondary whenever Primary
// fails for any reason.
type Fallback struct {
	Primary   Detector
	Secondary Detector
}

func (f Fallback) Detect(ctx context.Context, text string) (Result, error) {
	if f.Primary != nil {
		res, err := f.Primary.Detect(ctx, text)
		if err == nil {
			return res, nil
		}
	}
	if f.Secondary == nil {
		return Result{}, ErrUnavailable
	}
	return f.Secondary.Detect(ctx, text)
}
