package shell

import "strings"

// sensitiveEnvSubstrings are matched case-insensitively against every
// environment variable name; a match drops the variable from the child's
// environment.
var sensitiveEnvSubstrings = []string{"KEY", "TOKEN", "SECRET", "PASSWORD", "CREDENTIAL"}

// filterEnv returns env with sensitive variables removed: any AWS_* name,
// GITHUB_TOKEN exactly, and any name containing one of the sensitive
// substrings above.
func filterEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, kv := range env {
		name := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			name = kv[:idx]
		}
		if isSensitiveEnvName(name) {
			continue
		}
		filtered = append(filtered, kv)
	}
	return filtered
}

func isSensitiveEnvName(name string) bool {
	upper := strings.ToUpper(name)
	if strings.HasPrefix(upper, "AWS_") {
		return true
	}
	if upper == "GITHUB_TOKEN" {
		return true
	}
	for _, s := range sensitiveEnvSubstrings {
		if strings.Contains(upper, s) {
			return true
		}
	}
	return false
}
