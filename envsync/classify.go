package envsync

import "strings"

// secretMarkers are the substrings that mark a variable as likely holding
// sensitive material. Matched against the lower-cased key and value.
var secretMarkers = []string{
	"secret",
	"password",
	"passwd",
	"token",
	"key",
	"auth",
	"credential",
	"private",
	"cert",
}

// ClassifyAsSecret reports whether a variable looks like it holds a secret.
// This is advisory metadata only, consumed by reporting (masking values in
// diff output). It never affects the encryption path: every value is
// encrypted uniformly regardless of classification.
func ClassifyAsSecret(key, value string) bool {
	k := strings.ToLower(key)
	v := strings.ToLower(value)

	for _, marker := range secretMarkers {
		if strings.Contains(k, marker) || strings.Contains(v, marker) {
			return true
		}
	}

	return false
}
