package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envsync/envsync/envsync"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return root
}

func TestTree_FindsReferencesAcrossLanguages(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app.js":      `const url = process.env.API_URL; const k = process.env["API_KEY"];`,
		"settings.py": `db = os.environ.get("DATABASE_URL")` + "\n" + `debug = os.environ["DEBUG"]`,
		"main.go":     `port := os.Getenv("PORT")`,
		"config.rb":   `secret = ENV["SESSION_SECRET"]`,
		"deploy.sh":   `echo "${DEPLOY_TARGET}"`,
	})

	refs, err := Tree(root)
	require.NoError(t, err)

	for _, key := range []string{
		"API_URL", "API_KEY", "DATABASE_URL", "DEBUG",
		"PORT", "SESSION_SECRET", "DEPLOY_TARGET",
	} {
		assert.Contains(t, refs, key)
	}
	assert.Equal(t, []string{"app.js"}, refs["API_URL"])
}

func TestTree_SkipsVendoredDirsAndUnknownExtensions(t *testing.T) {
	root := writeTree(t, map[string]string{
		"node_modules/lib/index.js": `process.env.VENDORED`,
		".git/hooks/pre-commit":     `echo "${HOOK_VAR}"`,
		"README.md":                 `process.env.DOC_ONLY`,
		"src/app.js":                `process.env.REAL`,
	})

	refs, err := Tree(root)
	require.NoError(t, err)

	assert.NotContains(t, refs, "VENDORED")
	assert.NotContains(t, refs, "HOOK_VAR")
	assert.NotContains(t, refs, "DOC_ONLY")
	assert.Contains(t, refs, "REAL")
}

func TestTree_DeduplicatesFilesPerKey(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app.js": "process.env.PORT;\nprocess.env.PORT;",
	})

	refs, err := Tree(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js"}, refs["PORT"])
}

func TestTree_LowercaseNamesIgnored(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app.js": `process.env.port; echo "${lower_case}"`,
	})

	refs, err := Tree(root)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestCompare(t *testing.T) {
	refs := map[string][]string{
		"API_URL": {"app.js"},
		"PORT":    {"main.go"},
		"MISSING": {"settings.py"},
	}
	snap := envsync.Snapshot{
		"API_URL": "https://api.example.com",
		"PORT":    "8080",
		"UNUSED":  "nobody reads this",
	}

	report := Compare(refs, snap)

	assert.Equal(t, []string{"MISSING"}, report.Missing)
	assert.Equal(t, []string{"UNUSED"}, report.Unused)
	assert.Equal(t, refs, report.Referenced)
}

func TestCompare_SortedOutput(t *testing.T) {
	refs := map[string][]string{"Z_VAR": {"a.js"}, "A_VAR": {"a.js"}}

	report := Compare(refs, envsync.Snapshot{"M_VAR": "1", "B_VAR": "2"})

	assert.Equal(t, []string{"A_VAR", "Z_VAR"}, report.Missing)
	assert.Equal(t, []string{"B_VAR", "M_VAR"}, report.Unused)
}
