package envsync

// ChangeSet holds the keys that differ between two snapshots. Derived,
// never persisted; always computed fresh from two snapshots.
type ChangeSet struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Empty reports whether the change set contains no changes.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Len returns the total number of changed keys.
func (c ChangeSet) Len() int {
	return len(c.Added) + len(c.Modified) + len(c.Removed)
}

// Diff computes the change set from base to other: a key is added if
// present only in other, modified if present in both with different
// values, removed if present only in base. Pure and order-independent;
// result slices are sorted for deterministic output.
//
// Used symmetrically: the watcher diffs baseline-vs-file, the poller
// diffs file-vs-remote. Only which snapshot plays "base" differs.
func Diff(base, other Snapshot) ChangeSet {
	var cs ChangeSet

	for _, key := range sortedKeys(other) {
		baseVal, ok := base[key]
		switch {
		case !ok:
			cs.Added = append(cs.Added, key)
		case baseVal != other[key]:
			cs.Modified = append(cs.Modified, key)
		}
	}

	for _, key := range sortedKeys(base) {
		if _, ok := other[key]; !ok {
			cs.Removed = append(cs.Removed, key)
		}
	}

	return cs
}
