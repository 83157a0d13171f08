package envsync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempEnvFile(t *testing.T) *EnvFile {
	t.Helper()

	f, err := NewEnvFile(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)

	return f
}

// --- ParseEnv ---

func TestParseEnv_Basic(t *testing.T) {
	snap, err := ParseEnv([]byte("A=1\nB=two\n"))
	require.NoError(t, err)
	assert.Equal(t, Snapshot{"A": "1", "B": "two"}, snap)
}

func TestParseEnv_IgnoresCommentsAndBlanks(t *testing.T) {
	content := []byte(`
# database settings
DATABASE_URL=postgres://localhost/app

# server
PORT=8080
`)
	snap, err := ParseEnv(content)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{
		"DATABASE_URL": "postgres://localhost/app",
		"PORT":         "8080",
	}, snap)
}

func TestParseEnv_FirstEqualsSplits(t *testing.T) {
	snap, err := ParseEnv([]byte("CONN=host=db;user=app\n"))
	require.NoError(t, err)
	assert.Equal(t, "host=db;user=app", snap["CONN"])
}

func TestParseEnv_ExportPrefix(t *testing.T) {
	snap, err := ParseEnv([]byte("export PATH_EXTRA=/opt/bin\n"))
	require.NoError(t, err)
	assert.Equal(t, "/opt/bin", snap["PATH_EXTRA"])
}

func TestParseEnv_QuotedValues(t *testing.T) {
	snap, err := ParseEnv([]byte("GREETING=\"hello world\"\nSINGLE='raw $value'\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", snap["GREETING"])
	assert.Equal(t, "raw $value", snap["SINGLE"])
}

func TestParseEnv_Empty(t *testing.T) {
	snap, err := ParseEnv(nil)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

// --- MarshalEnv ---

func TestMarshalEnv_SortedAndRoundTrips(t *testing.T) {
	snap := Snapshot{
		"ZED":       "last",
		"ALPHA":     "first",
		"WITH_WS":   "has spaces",
		"MULTILINE": "a\nb",
		"NUMERIC":   "007",
		"EMPTY":     "",
		"HASH":      "a#b",
	}

	data := MarshalEnv(snap)

	got, err := ParseEnv(data)
	require.NoError(t, err)
	assert.Equal(t, snap, got, "marshal/parse must round-trip keys and values exactly")

	// Deterministic output: keys sorted.
	again := MarshalEnv(snap)
	assert.Equal(t, data, again)
}

func TestMarshalEnv_RoundTripsAwkwardValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"tab", "a\tb"},
		{"tab with spaces", "col1\tcol 2"},
		{"carriage return", "a\rb"},
		{"escape character", "\x1b[31mred\x1b[0m"},
		{"dollar reference", "price is $5 for ${ITEM}"},
		{"backslashes", `C:\Users\app`},
		{"backslash then n", `a\nb`},
		{"literal single quote", "it's fine"},
		{"quote inside", `say "hi" there`},
		{"trailing quote", `he said "hi"`},
		{"trailing backslash", `C:\path with spaces\`},
		{"lone backslash", `\`},
		{"mixed", "tab\there \"quoted\" $HOME done"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{"KEY": tt.value}

			got, err := ParseEnv(MarshalEnv(snap))
			require.NoError(t, err)
			assert.Equal(t, snap, got)
		})
	}
}

func TestMarshalEnv_StableAcrossRewrites(t *testing.T) {
	// Marshal → parse → marshal must reach a fixed point, or the poller
	// would rewrite an unchanged file on every tick.
	snap := Snapshot{"TABBED": "a\tb", "PLAIN": "1"}

	first := MarshalEnv(snap)
	parsed, err := ParseEnv(first)
	require.NoError(t, err)

	assert.Equal(t, first, MarshalEnv(parsed))
}

func TestMarshalEnv_PlainValuesUnquoted(t *testing.T) {
	data := MarshalEnv(Snapshot{"PORT": "8080"})
	assert.Equal(t, "PORT=8080\n", string(data))
}

func TestQuoteEnvValue_Forms(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", `""`},
		{"plain", "plain"},
		{`back\slash`, `back\slash`},
		{"has space", `"has space"`},
		{"a\tb", "\"a\tb\""},
		{"a\nb", `"a\nb"`},
		{"$HOME", `"\$HOME"`},
		{`he said "hi"`, `'he said "hi"'`},
		{`trailing \`, `"trailing \\""`},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, quoteEnvValue(tt.value))
		})
	}
}

// --- EnvFile ---

func TestEnvFile_MissingFileIsEmptySnapshot(t *testing.T) {
	f := tempEnvFile(t)

	snap, err := f.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestEnvFile_WriteReadRoundTrip(t *testing.T) {
	f := tempEnvFile(t)

	want := Snapshot{"A": "1", "SECRET_KEY": "s3cr3t", "URL": "https://x.example.com?a=b&c=d"}
	require.NoError(t, f.WriteSnapshot(want))

	got, err := f.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEnvFile_WriteSetsRestrictivePermissions(t *testing.T) {
	f := tempEnvFile(t)
	require.NoError(t, f.WriteSnapshot(Snapshot{"A": "1"}))

	info, err := os.Stat(f.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEnvFile_WriteLeavesNoTempFiles(t *testing.T) {
	f := tempEnvFile(t)
	require.NoError(t, f.WriteSnapshot(Snapshot{"A": "1"}))
	require.NoError(t, f.WriteSnapshot(Snapshot{"A": "2"}))

	entries, err := os.ReadDir(filepath.Dir(f.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".env", entries[0].Name())
}

func TestEnvFile_PathIsAbsolute(t *testing.T) {
	f, err := NewEnvFile(".env")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(f.Path()))
}
