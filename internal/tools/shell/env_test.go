package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterEnv_DropsSensitiveNames(t *testing.T) {
	in := []string{
		"PATH=/usr/bin",
		"AWS_ACCESS_KEY_ID=abc",
		"GITHUB_TOKEN=xyz",
		"MY_API_KEY=secret",
		"DB_PASSWORD=hunter2",
		"HOME=/root",
	}
	out := filterEnv(in)
	assert.Contains(t, out, "PATH=/usr/bin")
	assert.Contains(t, out, "HOME=/root")
	assert.NotContains(t, out, "AWS_ACCESS_KEY_ID=abc")
	assert.NotContains(t, out, "GITHUB_TOKEN=xyz")
	assert.NotContains(t, out, "MY_API_KEY=secret")
	assert.NotContains(t, out, "DB_PASSWORD=hunter2")
}
