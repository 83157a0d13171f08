package envsync

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const maskedValue = "********"

// RenderChangeSet formats a change set against its two snapshots for
// human consumption (the `diff` command and dry-run output). Modified
// values are rendered as an inline character diff; values classified as
// secrets are masked on both sides.
func RenderChangeSet(cs ChangeSet, base, other Snapshot) string {
	if cs.Empty() {
		return "no changes\n"
	}

	dmp := diffmatchpatch.New()

	var b strings.Builder
	for _, key := range cs.Added {
		fmt.Fprintf(&b, "+ %s=%s\n", key, displayValue(key, other[key]))
	}
	for _, key := range cs.Modified {
		if ClassifyAsSecret(key, base[key]) || ClassifyAsSecret(key, other[key]) {
			fmt.Fprintf(&b, "~ %s: %s -> %s\n", key, maskedValue, maskedValue)
			continue
		}
		diffs := dmp.DiffMain(base[key], other[key], false)
		fmt.Fprintf(&b, "~ %s: %s\n", key, dmp.DiffPrettyText(diffs))
	}
	for _, key := range cs.Removed {
		fmt.Fprintf(&b, "- %s=%s\n", key, displayValue(key, base[key]))
	}

	return b.String()
}

func displayValue(key, value string) string {
	if ClassifyAsSecret(key, value) {
		return maskedValue
	}
	return value
}
