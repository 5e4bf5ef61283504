package wordlist

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SettingKey is the settings row that holds the document.
const SettingKey = "comment_filter_word_lists"

type SettingRepo interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	UpsertSetting(ctx context.Context, key, value string) error
}

// SettingStore keeps the document in the settings table. The upsert is a
// single statement, so readers never observe a partial write.
type SettingStore struct {
	repo   SettingRepo
	logger *zap.Logger
}

func NewSettingStore(repo SettingRepo, logger *zap.Logger) *SettingStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingStore{repo: repo, logger: logger}
}

func (s *SettingStore) Load(ctx context.Context) WordList {
	v, ok, err := s.repo.GetSetting(ctx, SettingKey)
	if err != nil {
		s.logger.Warn("word list setting unreadable", zap.Error(err))
		return WordList{}
	}
	if !ok {
		return WordList{}
	}
	wl, err := decode([]byte(v))
	if err != nil {
		s.logger.Warn("word list setting malformed", zap.Error(err))
		return WordList{}
	}
	return wl
}

func (s *SettingStore) Replace(ctx context.Context, banned, flagged []string) error {
	b, err := encode(banned, flagged)
	if err != nil {
		return err
	}
	if err := s.repo.UpsertSetting(ctx, SettingKey, string(b)); err != nil {
		return fmt.Errorf("store word list: %w", err)
	}
	return nil
}
