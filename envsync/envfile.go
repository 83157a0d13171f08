package envsync

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	errs "github.com/envsync/envsync/internal/errors"
)

// ParseEnv parses newline-delimited KEY=VALUE content. Blank lines and
// lines beginning with # are ignored, an "export " prefix is tolerated,
// and quoted values are unquoted. Parsing is delegated to godotenv so the
// accepted syntax matches what most dotenv tooling produces.
func ParseEnv(content []byte) (Snapshot, error) {
	m, err := godotenv.UnmarshalBytes(content)
	if err != nil {
		return nil, fmt.Errorf("parsing env content: %w", err)
	}

	return Snapshot(m), nil
}

// MarshalEnv serializes a snapshot as KEY=VALUE lines in sorted key order.
// Values are quoted only when needed, in a form ParseEnv reverses exactly;
// comments are not preserved.
func MarshalEnv(snap Snapshot) []byte {
	var b strings.Builder
	for _, key := range sortedKeys(snap) {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(quoteEnvValue(snap[key]))
		b.WriteByte('\n')
	}

	return []byte(b.String())
}

// doubleQuoteEscaper emits only the escape sequences godotenv expands
// symmetrically inside double quotes: \n, \r, \" and \\ via its escape
// pass, \$ via its variable-expansion pass. Everything else, tabs and
// other control characters included, passes through a quoted value
// literally, so it is written literally.
var doubleQuoteEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"$", `\$`,
)

func quoteEnvValue(v string) string {
	switch {
	case v == "":
		return `""`
	case bareSafe(v):
		return v
	case strings.HasSuffix(v, `\`):
		// The escaped form ends in \\, and godotenv's closing-quote scan
		// treats any quote after a backslash as escaped. An extra quote
		// character absorbs that skip and is trimmed back off with the
		// delimiters.
		return `"` + doubleQuoteEscaper.Replace(v) + `""`
	case strings.HasSuffix(v, `"`) && !strings.ContainsAny(v, "'\r"):
		// A trailing quote survives only single-quoted: the delimiter
		// trim would eat it from a double-quoted form.
		return "'" + v + "'"
	default:
		return `"` + doubleQuoteEscaper.Replace(v) + `"`
	}
}

// bareSafe reports whether a value survives unquoted: godotenv trims
// surrounding whitespace, treats " #" as a trailing comment, expands $VAR
// references, and quote prefixes change parsing, so any of those force
// quoting. Backslashes are kept literally in unquoted values.
func bareSafe(v string) bool {
	for _, r := range v {
		switch r {
		case '\'', '"', '#', '$', '\n', '\t', '\v', '\f', '\r', ' ', 0x85, 0xA0:
			return false
		}
	}
	return true
}

func sortedKeys(snap Snapshot) []string {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvFile provides serialized access to the local env file. Writes take
// an exclusive lock and reads a shared lock so the poller's merge writes
// and the watcher's re-reads never observe a partial file. The path is
// resolved to an absolute path at construction.
type EnvFile struct {
	path string
	mu   sync.RWMutex
}

// NewEnvFile creates an EnvFile for the given path.
func NewEnvFile(path string) (*EnvFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving env file path: %w", err)
	}

	return &EnvFile{path: abs}, nil
}

// Path returns the absolute path of the env file.
func (f *EnvFile) Path() string {
	return f.path
}

// Snapshot reads and parses the current file content. A missing file
// parses as an empty snapshot so a first sync into a new checkout works.
func (f *EnvFile) Snapshot() (Snapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	content, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", errs.ErrFileIO, f.path, err)
	}

	return ParseEnv(content)
}

// WriteSnapshot serializes the snapshot over the file. The content is
// written to a temp file in the same directory and renamed into place so
// a concurrent reader never sees a torn write.
func (f *EnvFile) WriteSnapshot(snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".envsync-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", errs.ErrFileIO, err)
	}

	content := MarshalEnv(snap)
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing %s: %v", errs.ErrFileIO, f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: closing temp file: %v", errs.ErrFileIO, err)
	}

	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: setting permissions: %v", errs.ErrFileIO, err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: replacing %s: %v", errs.ErrFileIO, f.path, err)
	}

	return nil
}
