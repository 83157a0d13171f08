package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *State {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := LoadAt(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// --- LoadAt / Close ---

func TestLoadAt_CreatesDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "state.db")
	s, err := LoadAt(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestLoadAt_ReopensExistingDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	s1, err := LoadAt(dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.SetToken("persist-me"))
	require.NoError(t, s1.Close())

	s2, err := LoadAt(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	assert.Equal(t, "persist-me", s2.Token())
}

// --- Token ---

func TestToken_EmptyByDefault(t *testing.T) {
	s := testDB(t)
	assert.Equal(t, "", s.Token())
}

func TestSetToken_RoundTrip(t *testing.T) {
	s := testDB(t)
	require.NoError(t, s.SetToken("tok_xyz"))
	assert.Equal(t, "tok_xyz", s.Token())
}

// --- Cursors ---

func TestGetCursor_NilWhenMissing(t *testing.T) {
	s := testDB(t)

	sc, err := s.GetCursor("myapp", "production")
	require.NoError(t, err)
	assert.Nil(t, sc)
}

func TestSetCursor_RoundTrip(t *testing.T) {
	s := testDB(t)

	in := SyncCursor{
		Project:     "myapp",
		Environment: "staging",
		ContentHash: "abc123",
		RecordCount: 7,
		PushedAt:    1700000000000,
	}
	require.NoError(t, s.SetCursor(in))

	out, err := s.GetCursor("myapp", "staging")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in, *out)
}

func TestSetCursor_OverwritesPrevious(t *testing.T) {
	s := testDB(t)

	require.NoError(t, s.SetCursor(SyncCursor{Project: "myapp", Environment: "dev", RecordCount: 1}))
	require.NoError(t, s.SetCursor(SyncCursor{Project: "myapp", Environment: "dev", RecordCount: 2}))

	out, err := s.GetCursor("myapp", "dev")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 2, out.RecordCount)
}

func TestCursors_IsolatedByProjectAndEnvironment(t *testing.T) {
	s := testDB(t)

	require.NoError(t, s.SetCursor(SyncCursor{Project: "a", Environment: "dev", RecordCount: 1}))
	require.NoError(t, s.SetCursor(SyncCursor{Project: "a", Environment: "prod", RecordCount: 2}))
	require.NoError(t, s.SetCursor(SyncCursor{Project: "b", Environment: "dev", RecordCount: 3}))

	all, err := s.AllCursors()
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 1, all["a/dev"].RecordCount)
	assert.Equal(t, 2, all["a/prod"].RecordCount)
	assert.Equal(t, 3, all["b/dev"].RecordCount)
}

func TestLoad_OpensUnderDefaultStateDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := Load()
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(home, ".envsync", "state.db"))
	assert.NoError(t, err, "database must live in the default state directory")
}
