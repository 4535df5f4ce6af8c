// Package safety implements NatShell's deterministic risk classifier: a
// pure, stateless mapping from a Tool Call to Safe, Confirm, or Blocked.
// It never calls the model and never touches the filesystem.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Barent/natshell/internal/config"
)

// Risk is the outcome of classifying a Tool Call.
type Risk int

const (
	Safe Risk = iota
	Confirm
	Blocked
)

func (r Risk) String() string {
	switch r {
	case Safe:
		return "safe"
	case Confirm:
		return "confirm"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Verdict is the classifier's output for one Tool Call.
type Verdict struct {
	Risk   Risk
	Reason string
}

// maxCommandBytes bounds how large a command string the classifier will
// scan; oversized input is refused rather than parsed.
const maxCommandBytes = 64 * 1024

// Classifier evaluates Tool Calls against a compiled Safety Policy.
type Classifier struct {
	mode           string
	blocked        []*regexp.Regexp
	alwaysConfirm  []*regexp.Regexp
	sensitivePaths []*regexp.Regexp
}

// New compiles a Classifier from the given policy. Callers should treat a
// compile error as a configuration error fatal to startup: the classifier
// must never silently run with fewer patterns than configured.
func New(cfg config.SafetyConfig) (*Classifier, error) {
	c := &Classifier{mode: cfg.Mode}

	for _, pat := range cfg.Blocked {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("safety.blocked pattern %q: %w", pat, err)
		}
		c.blocked = append(c.blocked, re)
	}
	for _, pat := range cfg.AlwaysConfirm {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("safety.always_confirm pattern %q: %w", pat, err)
		}
		c.alwaysConfirm = append(c.alwaysConfirm, re)
	}
	for _, pat := range cfg.SensitivePaths {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("safety.sensitive_paths pattern %q: %w", pat, err)
		}
		c.sensitivePaths = append(c.sensitivePaths, re)
	}
	return c, nil
}

// ClassifyTool maps a non-shell tool call by name and arguments.
func (c *Classifier) ClassifyTool(name string, args map[string]any) Verdict {
	switch name {
	case "list_directory", "search_files", "natshell_help":
		return Verdict{Risk: Safe}
	case "read_file":
		if path, ok := args["path"].(string); ok && c.isSensitivePath(path) {
			return Verdict{Risk: Confirm, Reason: "path matches a sensitive-path pattern"}
		}
		return Verdict{Risk: Safe}
	case "write_file", "edit_file", "run_code":
		return Verdict{Risk: Confirm, Reason: fmt.Sprintf("%s always requires confirmation", name)}
	case "execute_shell":
		cmd, _ := args["command"].(string)
		return c.applyMode(c.ClassifyCommand(cmd))
	default:
		return Verdict{Risk: Confirm, Reason: "unrecognized tool defaults to confirm"}
	}
}

func (c *Classifier) isSensitivePath(path string) bool {
	for _, re := range c.sensitivePaths {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// ClassifyCommand runs the full shell-command risk classification,
// independent of policy-mode post-processing (see applyMode).
func (c *Classifier) ClassifyCommand(cmd string) Verdict {
	if cmd == "" {
		return Verdict{Risk: Blocked, Reason: "empty command"}
	}
	if len(cmd) > maxCommandBytes {
		return Verdict{Risk: Confirm, Reason: "command exceeds 64KiB, refusing to scan"}
	}

	// Step 1: match the entire string against Blocked first.
	for _, re := range c.blocked {
		if re.MatchString(cmd) {
			return Verdict{Risk: Blocked, Reason: fmt.Sprintf("matches blocked pattern %q", re.String())}
		}
	}

	segments, hasExpansion := splitCommand(cmd)

	// Blocked wins regardless of subshell/backtick presence: scan every
	// segment for a Blocked match before considering hasExpansion or any
	// Confirm-tier signal.
	sawConfirm := false
	var confirmReason string
	for _, seg := range segments {
		trimmed := strings.TrimSpace(seg)
		if trimmed == "" {
			continue
		}
		for _, re := range c.blocked {
			if re.MatchString(trimmed) {
				return Verdict{Risk: Blocked, Reason: fmt.Sprintf("segment %q matches blocked pattern", trimmed)}
			}
		}
		if strings.HasPrefix(trimmed, "sudo ") || trimmed == "sudo" {
			sawConfirm = true
			confirmReason = "command invokes sudo"
			continue
		}
		for _, re := range c.alwaysConfirm {
			if re.MatchString(trimmed) {
				sawConfirm = true
				confirmReason = fmt.Sprintf("segment %q matches always-confirm pattern", trimmed)
				break
			}
		}
	}

	if hasExpansion {
		return Verdict{Risk: Confirm, Reason: "command contains a subshell or backtick expansion"}
	}
	if sawConfirm {
		return Verdict{Risk: Confirm, Reason: confirmReason}
	}
	return Verdict{Risk: Safe}
}

// applyMode post-processes a Confirm verdict per the configured safety
// mode. Blocked verdicts are never touched.
func (c *Classifier) applyMode(v Verdict) Verdict {
	if v.Risk != Confirm {
		return v
	}
	switch c.mode {
	case "warn":
		return Verdict{Risk: Safe, Reason: "downgraded from confirm by warn mode: " + v.Reason}
	case "yolo":
		return Verdict{Risk: Safe, Reason: "downgraded from confirm by yolo mode: " + v.Reason}
	default:
		return v
	}
}

// splitCommand splits cmd on unquoted top-level occurrences of &&, ||, ;,
// &, | while honoring single/double quotes and $(...)/backtick nesting. It
// also reports whether any segment contains a $(...) or backtick expansion,
// since the caller must force Confirm on those regardless of segment
// content.
func splitCommand(cmd string) (segments []string, hasExpansion bool) {
	var cur strings.Builder
	var quote byte
	depth := 0
	runes := []rune(cmd)
	i := 0
	for i < len(runes) {
		ch := runes[i]

		if quote != 0 {
			cur.WriteRune(ch)
			if byte(ch) == quote {
				quote = 0
			}
			i++
			continue
		}

		switch ch {
		case '\'', '"':
			quote = byte(ch)
			cur.WriteRune(ch)
			i++
			continue
		case '`':
			hasExpansion = true
			quote = byte(ch)
			cur.WriteRune(ch)
			i++
			continue
		case '(':
			if depth > 0 || (i > 0 && runes[i-1] == '$') {
				depth++
			}
			cur.WriteRune(ch)
			i++
			continue
		case ')':
			if depth > 0 {
				depth--
			}
			cur.WriteRune(ch)
			i++
			continue
		}

		if depth == 0 && i+1 < len(runes) {
			two := string(runes[i : i+2])
			if two == "&&" || two == "||" {
				segments = append(segments, cur.String())
				cur.Reset()
				i += 2
				continue
			}
		}

		if depth == 0 && (ch == ';' || ch == '&' || ch == '|') {
			segments = append(segments, cur.String())
			cur.Reset()
			i++
			continue
		}

		if ch == '$' && i+1 < len(runes) && runes[i+1] == '(' {
			hasExpansion = true
		}

		cur.WriteRune(ch)
		i++
	}
	segments = append(segments, cur.String())
	return segments, hasExpansion
}
