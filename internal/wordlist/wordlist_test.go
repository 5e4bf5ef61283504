package wordlist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNormalize(t *testing.T) {
	got := Normalize([]string{"  scam ", "", "Fraud", "scam", "\t", "fraud"})
	assert.Equal(t, []string{"scam", "Fraud", "fraud"}, got)
}

func TestParseLines(t *testing.T) {
	got := ParseLines("spam\r\n\r\n  idiot  \nspam\n")
	assert.Equal(t, []string{"spam", "idiot"}, got)
}

func TestFileStoreReplaceThenLoad(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "lists", "words.json"), nil)

	require.NoError(t, s.Replace(ctx, []string{"Scam", " scam ", "", "fraud"}, []string{"corruption", "corruption"}))
	wl := s.Load(ctx)
	assert.Equal(t, []string{"Scam", "scam", "fraud"}, wl.Banned)
	assert.Equal(t, []string{"corruption"}, wl.Flagged)

	require.NoError(t, s.Replace(ctx, nil, []string{"delay"}))
	wl = s.Load(ctx)
	assert.Empty(t, wl.Banned)
	assert.Equal(t, []string{"delay"}, wl.Flagged)
}

func TestFileStoreDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.json")
	s := NewFileStore(path, nil)
	require.NoError(t, s.Replace(context.Background(), []string{"scam"}, []string{"bribe"}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"banned_words":["scam"],"flagged_words":["bribe"]}`, string(b))
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), nil)
	wl := s.Load(context.Background())
	assert.Empty(t, wl.Banned)
	assert.Empty(t, wl.Flagged)
}

func TestFileStoreMalformedFileIsEmptyAndLogged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	core, logs := observer.New(zapcore.WarnLevel)

	wl := NewFileStore(path, zap.New(core)).Load(context.Background())
	assert.Empty(t, wl.Banned)
	assert.Equal(t, 1, logs.FilterMessage("word list malformed").Len())
}

func TestFileStoreReadersNeverSeePartialDocument(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "words.json"), nil)
	small := []string{"a1"}
	large := make([]string, 0, 500)
	for i := 0; i < 500; i++ {
		large = append(large, "term"+string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	require.NoError(t, s.Replace(ctx, small, nil))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			lst := small
			if i%2 == 0 {
				lst = large
			}
			_ = s.Replace(ctx, lst, nil)
		}
		close(stop)
	}()
	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		n := len(s.Load(ctx).Banned)
		require.True(t, n == len(small) || n == len(large), "observed %d terms", n)
	}
}

type memSettings struct {
	values map[string]string
	err    error
}

func (m *memSettings) GetSetting(ctx context.Context, key string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSettings) UpsertSetting(ctx context.Context, key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func TestSettingStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := &memSettings{values: map[string]string{}}
	s := NewSettingStore(repo, nil)

	assert.Empty(t, s.Load(ctx).Banned)
	require.NoError(t, s.Replace(ctx, []string{"scam", "", "scam"}, []string{" bribe"}))
	wl := s.Load(ctx)
	assert.Equal(t, []string{"scam"}, wl.Banned)
	assert.Equal(t, []string{"bribe"}, wl.Flagged)
}

func TestSettingStoreErrors(t *testing.T) {
	ctx := context.Background()
	repo := &memSettings{values: map[string]string{SettingKey: "[]"}}
	s := NewSettingStore(repo, nil)
	assert.Empty(t, s.Load(ctx).Banned)

	repo.err = errors.New("db down")
	assert.Empty(t, s.Load(ctx).Flagged)
	require.Error(t, s.Replace(ctx, []string{"x"}, nil))
}
