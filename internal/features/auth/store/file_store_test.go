package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clockout-watcher/internal/common"
	"clockout-watcher/internal/features/auth/domain"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	return s
}

func TestNewFileStore(t *testing.T) {
	_, err := NewFileStore("")
	assert.True(t, common.IsInvalidInput(err), "empty path should be rejected")

	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "nested", "deep", "tokens.json"))
	require.NoError(t, err)
	assert.DirExists(t, filepath.Dir(s.Path()), "parent directories should be created")
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token := domain.Token{
		Value:    "abc123",
		Cookie:   "JSESSIONID=AB3677EB",
		IssuedAt: time.Now().Truncate(time.Second),
		Source:   domain.SourceAutoExtracted,
	}

	require.NoError(t, s.Save(ctx, token))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, token.Value, loaded.Value)
	assert.Equal(t, token.Cookie, loaded.Cookie)
	assert.Equal(t, domain.SourceAutoExtracted, loaded.Source)
	assert.WithinDuration(t, token.IssuedAt, loaded.IssuedAt, time.Second)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "token file should be private")
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load(context.Background())
	assert.True(t, common.IsNoToken(err), "missing file should report no token, got: %v", err)
}

func TestLoadCorruptFile(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	_, err := s.Load(context.Background())
	assert.True(t, common.IsNoToken(err), "corrupt file should report no token, not fail hard")
}

func TestLoadEmptyToken(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"token": ""}`), 0o600))

	_, err := s.Load(context.Background())
	assert.True(t, common.IsNoToken(err))
}

func TestSaveRejectsEmptyToken(t *testing.T) {
	s := newTestStore(t)

	err := s.Save(context.Background(), domain.Token{})
	assert.True(t, common.IsInvalidInput(err))
}

func TestSaveOverwritesNotMerges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := domain.Token{Value: "first", Cookie: "c=1", IssuedAt: time.Now(), Source: domain.SourceManual}
	require.NoError(t, s.Save(ctx, first))

	second := domain.Token{Value: "second", IssuedAt: time.Now(), Source: domain.SourceAutoExtracted}
	require.NoError(t, s.Save(ctx, second))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.Value)
	assert.Empty(t, loaded.Cookie, "save must replace the whole record, not merge fields")
}

func TestCrashMidWriteLeavesPreviousTokenIntact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	previous := domain.Token{Value: "still-valid", IssuedAt: time.Now(), Source: domain.SourceManual}
	require.NoError(t, s.Save(ctx, previous))

	// Simulate a crash between "write new token" and "finalize": a temp
	// file exists in the directory but the rename never happened.
	abandoned := filepath.Join(filepath.Dir(s.Path()), "tokens.json.tmp-crash")
	require.NoError(t, os.WriteFile(abandoned, []byte(`{"token": "half-wr`), 0o600))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "still-valid", loaded.Value, "reader must never observe a partial write")

	// The store file itself is complete valid JSON
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var token domain.Token
	require.NoError(t, json.Unmarshal(data, &token))
}

func TestConcurrentSaves(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	tokens := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for _, value := range tokens {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			err := s.Save(ctx, domain.Token{Value: v, IssuedAt: time.Now(), Source: domain.SourceAutoExtracted})
			assert.NoError(t, err)
		}(value)
	}
	wg.Wait()

	// Whatever won, the file holds exactly one complete token
	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, tokens, loaded.Value)

	// No lock or temp files left behind
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the token file should remain")
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, domain.Token{Value: "abc", IssuedAt: time.Now(), Source: domain.SourceManual}))
	require.NoError(t, s.Clear(ctx))

	_, err := s.Load(ctx)
	assert.True(t, common.IsNoToken(err))

	// Clearing an already empty store is not an error
	assert.NoError(t, s.Clear(ctx))
}

func TestStaleLockIsReclaimed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lockPath := s.Path() + ".lock"
	require.NoError(t, os.WriteFile(lockPath, []byte("12345"), 0o600))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	err := s.Save(ctx, domain.Token{Value: "abc", IssuedAt: time.Now(), Source: domain.SourceAutoExtracted})
	require.NoError(t, err, "a stale lock should be reclaimed, not block the save")
}
