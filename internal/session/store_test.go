package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStoreAt(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)
	return store
}

func TestStoreSaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	sess := &Session{
		ID:           "abc-123",
		VMName:       "dev",
		DebugLevel:   "full",
		ConsolePath:  "/tmp/abc-123.log",
		EnabledPorts: []uint16{8080, 443},
		Status:       "running",
		StartedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(sess))

	loaded, err := store.Load("abc-123")
	require.NoError(t, err)
	assert.Equal(t, sess, loaded)
}

func TestStoreLoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("nope")
	assert.ErrorContains(t, err, "session not found")
}

func TestStoreList(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&Session{ID: "one", VMName: "a", Status: "running"}))
	require.NoError(t, store.Save(&Session{ID: "two", VMName: "b", Status: "stopped"}))

	// Corrupt files and strays are skipped, not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "bad.json"), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("ignore"), 0644))

	sessions, err := store.List()
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	ids := []string{sessions[0].ID, sessions[1].ID}
	assert.ElementsMatch(t, []string{"one", "two"}, ids)
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&Session{ID: "gone", Status: "stopped"}))
	require.NoError(t, store.Delete("gone"))

	_, err := store.Load("gone")
	assert.Error(t, err)

	assert.NoError(t, store.Delete("gone"), "deleting a missing session is not an error")
}

func TestStoreUpdateInPlace(t *testing.T) {
	store := newTestStore(t)

	sess := &Session{ID: "s1", VMName: "dev", Status: "running", StartedAt: time.Now().UTC()}
	require.NoError(t, store.Save(sess))

	stopped := time.Now().UTC().Truncate(time.Second)
	sess.Status = "stopped"
	sess.StoppedAt = &stopped
	sess.ExitReason = "requested"
	require.NoError(t, store.Save(sess))

	loaded, err := store.Load("s1")
	require.NoError(t, err)
	assert.Equal(t, "stopped", loaded.Status)
	require.NotNil(t, loaded.StoppedAt)
	assert.Equal(t, stopped, *loaded.StoppedAt)
	assert.Equal(t, "requested", loaded.ExitReason)
}
