// Package scan statically finds environment-variable references in a
// source tree so `envsync scan` can report variables that are referenced
// but undefined, and defined but unreferenced.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/envsync/envsync/envsync"
)

// refPatterns match the common ways source code reads an environment
// variable. Each pattern's first capture group is the variable key.
var refPatterns = []*regexp.Regexp{
	regexp.MustCompile(`process\.env\.([A-Z_][A-Z0-9_]*)`),
	regexp.MustCompile(`process\.env\[["']([A-Z_][A-Z0-9_]*)["']\]`),
	regexp.MustCompile(`os\.environ(?:\.get\(|\[)["']([A-Z_][A-Z0-9_]*)["']`),
	regexp.MustCompile(`os\.Getenv\("([A-Z_][A-Z0-9_]*)"\)`),
	regexp.MustCompile(`ENV\[["']([A-Z_][A-Z0-9_]*)["']\]`),
	regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
}

// sourceExtensions limits the scan to files likely to contain code.
var sourceExtensions = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true,
	".py": true, ".rb": true, ".go": true, ".sh": true, ".bash": true,
	".yaml": true, ".yml": true, ".tf": true,
}

var skipDirs = map[string]bool{
	"node_modules": true, ".git": true, "vendor": true, "dist": true,
	"build": true, "__pycache__": true,
}

// maxFileSize caps how much of a single file the scanner reads. Generated
// bundles past this size are overwhelmingly noise.
const maxFileSize = 1 << 20

// Report lists the mismatches between the scanned references and a
// snapshot's defined keys.
type Report struct {
	// Referenced maps each referenced key to the files referencing it.
	Referenced map[string][]string

	// Missing keys are referenced in code but absent from the snapshot.
	Missing []string

	// Unused keys are defined in the snapshot but never referenced.
	Unused []string
}

// Tree scans a directory tree for env-var references.
func Tree(root string) (map[string][]string, error) {
	refs := make(map[string][]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil // unreadable files are skipped, not fatal
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		for _, re := range refPatterns {
			for _, m := range re.FindAllStringSubmatch(string(content), -1) {
				key := m[1]
				if !contains(refs[key], rel) {
					refs[key] = append(refs[key], rel)
				}
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	return refs, nil
}

// Compare builds a report from scanned references and a snapshot.
func Compare(refs map[string][]string, snap envsync.Snapshot) Report {
	r := Report{Referenced: refs}

	for key := range refs {
		if _, ok := snap[key]; !ok {
			r.Missing = append(r.Missing, key)
		}
	}
	for key := range snap {
		if _, ok := refs[key]; !ok {
			r.Unused = append(r.Unused, key)
		}
	}

	sort.Strings(r.Missing)
	sort.Strings(r.Unused)

	return r
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
