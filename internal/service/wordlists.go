package service

import (
	"context"
	"fmt"
	"time"

	"countyportal/internal/filter"
	"countyportal/internal/langdetect"
	"countyportal/internal/models"
	"countyportal/internal/wordlist"
)

const statsWindowDays = 30

func (s *Service) WordLists(ctx context.Context) wordlist.WordList {
	return s.words.Load(ctx)
}

// ReplaceWordLists normalizes and stores both lists. Readers see either
// the old or the new pair, never a mix.
func (s *Service) ReplaceWordLists(ctx context.Context, adminID int64, banned, flagged []string) (wordlist.WordList, error) {
	banned = wordlist.Normalize(banned)
	flagged = wordlist.Normalize(flagged)
	if err := s.words.Replace(ctx, banned, flagged); err != nil {
		return wordlist.WordList{}, fmt.Errorf("replace word lists: %w", err)
	}
	s.logActivity(ctx, "word_list_updated",
		fmt.Sprintf("Word lists updated: %d banned, %d flagged", len(banned), len(flagged)),
		&adminID, "word_list", nil, map[string]any{"banned_count": len(banned), "flagged_count": len(flagged)})
	return wordlist.WordList{Banned: banned, Flagged: flagged}, nil
}

func (s *Service) FilterStats(ctx context.Context) (models.FilterStats, error) {
	byReason, err := s.st.FilterStats(ctx, s.now().Add(-statsWindowDays*24*time.Hour))
	if err != nil {
		return models.FilterStats{}, err
	}
	list := s.words.Load(ctx)
	return models.FilterStats{
		AutoApproved:       byReason[string(filter.ReasonClean)],
		FlaggedForReview:   byReason[string(filter.ReasonFlagged)] + byReason[string(filter.ReasonLanguage)] + byReason[string(filter.ReasonManual)],
		AutoRejected:       byReason[string(filter.ReasonBanned)] + byReason[string(filter.ReasonLength)],
		ByReason:           byReason,
		BannedWordsCount:   len(list.Banned),
		FlaggedWordsCount:  len(list.Flagged),
		SupportedLanguages: langdetect.SupportedLanguages(),
		WindowDays:         statsWindowDays,
	}, nil
}

// PreviewFilter runs the current lists over text without storing anything.
func (s *Service) PreviewFilter(ctx context.Context, text string) filter.Verdict {
	engine := filter.New(s.words.Load(ctx), s.detector, filter.WithLogger(s.logger))
	return engine.FilterComment(ctx, text)
}
