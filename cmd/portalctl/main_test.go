package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"countyportal/internal/auth"
	"countyportal/internal/wordlist"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func isolatedEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", filepath.Join(dir, "portal.db"))
	t.Setenv("WORDLIST_BACKEND", "file")
	t.Setenv("WORDLIST_PATH", filepath.Join(dir, "words.json"))
	t.Setenv("LANGDETECT_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestHashToken(t *testing.T) {
	out, err := run(t, "hash-token", "--admin-id", "4")
	require.NoError(t, err)

	var token, entry string
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "token: "); ok {
			token = v
		}
		if v, ok := strings.CutPrefix(line, "ADMIN_TOKENS entry: 4="); ok {
			entry = v
		}
	}
	require.NotEmpty(t, token)
	require.NotEmpty(t, entry)
	id, secret, err := auth.ParseAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
	assert.True(t, auth.VerifySecret(entry, secret))

	_, err = run(t, "hash-token", "--admin-id", "0")
	require.Error(t, err)
}

func TestWordsImportShowAndFilter(t *testing.T) {
	dir := isolatedEnv(t)
	doc := filepath.Join(dir, "import.json")
	require.NoError(t, os.WriteFile(doc, []byte(`{"banned_words":["thief"," thief ",""],"flagged_words":["bribe"]}`), 0o600))

	out, err := run(t, "words", "import", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 banned and 1 flagged terms")

	out, err = run(t, "words", "show")
	require.NoError(t, err)
	var list wordlist.WordList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, []string{"thief"}, list.Banned)

	out, err = run(t, "filter", "They", "asked", "for", "a", "bribe")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "pending_review"`)
	assert.Contains(t, out, `"reason": "flagged_words"`)
}

func TestNotifyWithoutSubscribers(t *testing.T) {
	isolatedEnv(t)
	out, err := run(t, "notify", "--project", "7", "--type", "milestone")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing sent")
}
