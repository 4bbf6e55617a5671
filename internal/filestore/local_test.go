package filestore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshkolte01/tutor-bot/internal/config"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)

	err = store.Save(context.Background(), "abc123_notes.pdf", []byte("file body"))
	require.NoError(t, err)

	r, err := store.Open(context.Background(), "abc123_notes.pdf")
	require.NoError(t, err)
	defer r.Close()
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "file body", string(body))
}

func TestLocalStoreRejectsPathKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)

	require.Error(t, store.Save(context.Background(), "../escape", []byte("x")))
	_, err = store.Open(context.Background(), "a/b")
	require.Error(t, err)
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(config.FileStoreConfig{Type: "ftp"})
	require.Error(t, err)
}
