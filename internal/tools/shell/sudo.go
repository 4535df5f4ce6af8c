package shell

import (
	"strings"
	"sync"
	"time"
)

// credentialTTL is the Sudo Credential Cache's lifetime.
const credentialTTL = 5 * time.Minute

// CredentialCache holds a cached sudo password keyed by monotonic
// acquisition time. It does no logging of its own and never passes the
// password value to a logger.
type CredentialCache struct {
	mu         sync.Mutex
	password   string
	acquiredAt time.Time
	set        bool
}

// NewCredentialCache returns an empty cache.
func NewCredentialCache() *CredentialCache {
	return &CredentialCache{}
}

// Set stores password, starting a fresh 5-minute window.
func (c *CredentialCache) Set(password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.password = password
	c.acquiredAt = time.Now()
	c.set = true
}

// Get returns the cached password if it is still within its TTL. The
// second return value is false when nothing is cached or the cache has
// expired, in which case the stale entry is discarded.
func (c *CredentialCache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return "", false
	}
	if time.Since(c.acquiredAt) > credentialTTL {
		c.password = ""
		c.set = false
		return "", false
	}
	return c.password, true
}

// Invalidate discards the cached credential, used after an authentication
// failure so the next sudo attempt re-prompts.
func (c *CredentialCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.password = ""
	c.set = false
}

// rewriteFirstSudo rewrites only the first "sudo" occurrence in cmd to
// "sudo -S" so the cached password can be piped via stdin.
func rewriteFirstSudo(cmd string) string {
	idx := strings.Index(cmd, "sudo")
	if idx == -1 {
		return cmd
	}
	// require a word boundary before "sudo" so e.g. "pseudo" isn't rewritten
	if idx > 0 {
		prev := cmd[idx-1]
		if prev != ' ' && prev != '\t' && prev != ';' && prev != '&' && prev != '|' && prev != '(' {
			return cmd
		}
	}
	return cmd[:idx] + "sudo -S" + cmd[idx+len("sudo"):]
}

func containsSudo(cmd string) bool {
	return strings.Contains(cmd, "sudo")
}
