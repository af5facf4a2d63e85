package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	valid := []string{"Jane_Doe_4567.json", "Unknown_jdoe.json", "Unknown.json", "张三_5678.json"}
	for _, k := range valid {
		assert.NoError(t, ValidateKey(k), k)
	}
	invalid := []string{"", ".json", "Jane", "a/b.json", `a\b.json`, "../x.json", "line\nbreak.json"}
	for _, k := range invalid {
		assert.ErrorIs(t, ValidateKey(k), ErrInvalidKey, k)
	}
	assert.Equal(t, "Jane_Doe_4567.json", RecordKey("Jane_Doe_4567"))
}

func TestFSRecordStorePutGet(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "parsed")
	s, err := NewFSRecordStore(dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)

	require.NoError(t, s.Put(ctx, "Jane_Doe_4567.json", []byte(`{"name":"Jane Doe"}`)))
	got, err := s.Get(ctx, "Jane_Doe_4567.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Jane Doe"}`, string(got))

	// last writer wins
	require.NoError(t, s.Put(ctx, "Jane_Doe_4567.json", []byte(`{"name":"Jane D"}`)))
	got, err = s.Get(ctx, "Jane_Doe_4567.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Jane D"}`, string(got))
}

func TestFSRecordStoreGetMissing(t *testing.T) {
	s, err := NewFSRecordStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "nobody.json")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = s.Get(context.Background(), "../escape.json")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFSRecordStoreListLexical(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFSRecordStore(dir)
	require.NoError(t, err)

	for _, k := range []string{"b.json", "a.json", "C.json"} {
		require.NoError(t, s.Put(ctx, k, []byte("{}")))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C.json", "a.json", "b.json"}, keys)
}

func TestFSRecordStoreCancelled(t *testing.T) {
	s, err := NewFSRecordStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Put(ctx, "a.json", []byte("{}")), context.Canceled)
	_, err = s.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFSRecordStoreEmptyDir(t *testing.T) {
	_, err := NewFSRecordStore("")
	assert.Error(t, err)
}
