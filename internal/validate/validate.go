// Package validate checks a snapshot against the project's validation
// rules: required keys, non-empty values, and per-key regex patterns.
package validate

import (
	"fmt"
	"regexp"

	"github.com/envsync/envsync/envsync"
	"github.com/envsync/envsync/internal/project"
)

// Issue is one rule violation.
type Issue struct {
	Key     string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Key, i.Message)
}

// Check evaluates every rule against the snapshot and returns the list of
// violations, in rule order. An empty result means the snapshot passes.
func Check(snap envsync.Snapshot, rules []project.Rule) ([]Issue, error) {
	var issues []Issue

	for _, rule := range rules {
		value, present := snap[rule.Key]

		if !present {
			if rule.Required {
				issues = append(issues, Issue{Key: rule.Key, Message: "required key is missing"})
			}
			continue
		}

		if rule.NonEmpty && value == "" {
			issues = append(issues, Issue{Key: rule.Key, Message: "value must not be empty"})
		}

		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rule for %s has invalid pattern %q: %w", rule.Key, rule.Pattern, err)
			}
			if !re.MatchString(value) {
				issues = append(issues, Issue{
					Key:     rule.Key,
					Message: fmt.Sprintf("value does not match pattern %s", rule.Pattern),
				})
			}
		}
	}

	return issues, nil
}
