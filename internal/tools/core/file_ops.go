package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Barent/natshell/internal/backup"
	"github.com/Barent/natshell/internal/logging"
	"github.com/Barent/natshell/internal/tools"
)

// defaultMaxLines is read_file's line limit when max_lines is not given;
// it is a fixed value and is not scaled by the engine's context window.
const defaultMaxLines = 200

// Runtime is the shared state file tools need beyond their arguments: the
// FileReadTracker enforcing the read-before-edit invariant and the backup
// manager creating Backup Records before mutation. A single Runtime is
// constructed at startup and closed over by every registered tool.
type Runtime struct {
	Tracker *backup.FileReadTracker
	Backups *backup.Manager
}

// NewRuntime returns a Runtime backed by the given backup directory and
// per-file retention cap.
func NewRuntime(backupDir string, maxPerFile int) *Runtime {
	return &Runtime{
		Tracker: backup.NewFileReadTracker(),
		Backups: backup.NewManager(backupDir, maxPerFile),
	}
}

// ReadFileTool returns a tool for reading file contents.
func (rt *Runtime) ReadFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        "read_file",
		Description: "Read the contents of a file",
		Category:    tools.CategoryCode,
		Priority:    90,
		Execute:     rt.executeReadFile,
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {Type: "string", Description: "The file path to read"},
				"max_lines": {
					Type:        "integer",
					Description: "Maximum lines to read from the start of the file (default 200, up to 4000)",
				},
			},
		},
	}
}

func (rt *Runtime) executeReadFile(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	logging.ToolsDebug("read_file: path=%s", path)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("NotFound: %s", path)
		}
		if os.IsPermission(err) {
			return "", fmt.Errorf("PermissionDenied: %s", path)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("IsDirectory: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return "", fmt.Errorf("PermissionDenied: %s", path)
		}
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	rt.Tracker.Record(path, content)

	maxLines := defaultMaxLines
	ml, ok := args["max_lines"].(int)
	if f, isFloat := args["max_lines"].(float64); isFloat {
		ml, ok = int(f), true
	}
	if ok && ml > 0 {
		maxLines = ml
		if maxLines > 4000 {
			maxLines = 4000
		}
	}

	lines := strings.Split(string(content), "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	result := strings.Join(lines, "\n")

	logging.Tools("read_file completed: %s (%d bytes)", path, len(result))
	return result, nil
}

// WriteFileTool returns a tool for writing content to a file.
func (rt *Runtime) WriteFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        "write_file",
		Description: "Write content to a file, creating it if it doesn't exist",
		Category:    tools.CategoryCode,
		Priority:    80,
		Execute:     rt.executeWriteFile,
		Schema: tools.ToolSchema{
			Required: []string{"path", "content"},
			Properties: map[string]tools.Property{
				"path":    {Type: "string", Description: "The file path to write"},
				"content": {Type: "string", Description: "The content to write"},
				"mode": {
					Type:        "string",
					Description: "overwrite (default) or append",
					Default:     "overwrite",
				},
			},
		},
	}
}

func (rt *Runtime) executeWriteFile(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	content, _ := args["content"].(string)
	mode, _ := args["mode"].(string)
	if mode == "" {
		mode = "overwrite"
	}

	logging.ToolsDebug("write_file: path=%s, size=%d, mode=%s", path, len(content), mode)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	if mode == "overwrite" {
		if _, err := os.Stat(path); err == nil {
			if _, err := rt.Backups.Backup(path); err != nil {
				return "", fmt.Errorf("failed to back up existing file: %w", err)
			}
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			if os.IsPermission(err) {
				return "", fmt.Errorf("PermissionDenied: %s", path)
			}
			return "", fmt.Errorf("failed to write file: %w", err)
		}
	} else {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			if os.IsPermission(err) {
				return "", fmt.Errorf("PermissionDenied: %s", path)
			}
			return "", fmt.Errorf("failed to open file for append: %w", err)
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return "", fmt.Errorf("failed to append to file: %w", err)
		}
	}

	newContent, _ := os.ReadFile(path)
	rt.Tracker.Record(path, newContent)

	logging.Tools("write_file completed: %s (%d bytes, mode=%s)", path, len(content), mode)
	return fmt.Sprintf("Wrote %d bytes to %s (%s)", len(content), path, mode), nil
}

// EditFileTool returns a tool for editing files with search/replace,
// gated by the read-before-edit invariant.
func (rt *Runtime) EditFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        "edit_file",
		Description: "Edit a file by replacing an exact, unique occurrence of text",
		Category:    tools.CategoryCode,
		Priority:    85,
		Execute:     rt.executeEditFile,
		Schema: tools.ToolSchema{
			Required: []string{"path", "search", "replace"},
			Properties: map[string]tools.Property{
				"path":    {Type: "string", Description: "The file path to edit"},
				"search":  {Type: "string", Description: "The exact text to find; must occur exactly once"},
				"replace": {Type: "string", Description: "The replacement text"},
			},
		},
	}
}

func (rt *Runtime) executeEditFile(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	search, _ := args["search"].(string)
	if search == "" {
		return "", fmt.Errorf("search is required")
	}
	replace, _ := args["replace"].(string)

	logging.ToolsDebug("edit_file: path=%s", path)

	current, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("NotFound: %s", path)
		}
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	tracked, matches := rt.Tracker.Check(path, current)
	if !tracked {
		return "", fmt.Errorf("StaleRead: %s has not been read this session; call read_file first", path)
	}
	if !matches {
		return "", fmt.Errorf("StaleRead: %s changed on disk since it was last read; call read_file again", path)
	}

	contentStr := string(current)
	count := strings.Count(contentStr, search)
	switch {
	case count == 0:
		suggestions := fuzzySuggestions(contentStr, search, 3)
		if len(suggestions) > 0 {
			return "", fmt.Errorf("NoMatch: search text not found; closest lines:\n%s", strings.Join(suggestions, "\n"))
		}
		return "", fmt.Errorf("NoMatch: search text not found in %s", path)
	case count > 1:
		return "", fmt.Errorf("Ambiguous: search text occurs %d times in %s, must be unique", count, path)
	}

	newContent := strings.Replace(contentStr, search, replace, 1)

	if _, err := rt.Backups.Backup(path); err != nil {
		return "", fmt.Errorf("failed to back up file before edit: %w", err)
	}
	if err := os.WriteFile(path, []byte(newContent), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	rt.Tracker.Refresh(path, []byte(newContent))

	diff := unifiedDiffWindow(contentStr, newContent, search, 5)
	logging.Tools("edit_file completed: %s", path)
	return diff, nil
}

// fuzzySuggestions returns up to n lines of content with the smallest edit
// distance to search, for a zero-match edit_file error.
func fuzzySuggestions(content, search string, n int) []string {
	type scored struct {
		line string
		dist int
	}
	var candidates []scored
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		candidates = append(candidates, scored{line: trimmed, dist: levenshtein(trimmed, search)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	var out []string
	for i := 0; i < len(candidates) && i < n; i++ {
		out = append(out, fmt.Sprintf("  %q (distance %d)", candidates[i].line, candidates[i].dist))
	}
	return out
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

// unifiedDiffWindow renders edit_file's success output: a diff-style header
// with both line counts and the edit's line number, then the lines of
// newContent from window lines before the edit point to window-1 lines
// after it. Removed and added lines are not marked with -/+.
func unifiedDiffWindow(oldContent, newContent, search string, window int) string {
	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")

	idx := strings.Index(oldContent, search)
	lineNum := strings.Count(oldContent[:idx], "\n")

	start := lineNum - window
	if start < 0 {
		start = 0
	}
	end := lineNum + window
	if end > len(newLines) {
		end = len(newLines)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a (%d lines)\n+++ b (%d lines)\n", len(oldLines), len(newLines))
	fmt.Fprintf(&b, "@@ context around line %d @@\n", lineNum+1)
	for i := start; i < end; i++ {
		prefix := " "
		if i < len(newLines) {
			b.WriteString(prefix + newLines[i] + "\n")
		}
	}
	return b.String()
}

// defaultMaxEntries bounds how many entries list_directory returns when
// max_entries is not given, so a directory with millions of files can't
// blow out the context window in one call.
const defaultMaxEntries = 500

// ListFilesTool returns a tool for listing directory contents.
func ListFilesTool() *tools.Tool {
	return &tools.Tool{
		Name:        "list_directory",
		Description: "List files in a directory with name, type, size, and modification time",
		Category:    tools.CategoryCode,
		Priority:    85,
		Execute:     executeListFiles,
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path":        {Type: "string", Description: "The directory path to list"},
				"recursive":   {Type: "boolean", Description: "List recursively (default: false)", Default: false},
				"show_hidden": {Type: "boolean", Description: "Include hidden files (default: false)", Default: false},
				"max_entries": {Type: "integer", Description: "Maximum number of entries to return (default: 500)", Default: defaultMaxEntries},
			},
		},
	}
}

// listEntry is one row of a list_directory result: name, type, size, mtime.
type listEntry struct {
	name  string
	isDir bool
	size  int64
	mtime time.Time
}

func executeListFiles(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	recursive, _ := args["recursive"].(bool)
	showHidden, _ := args["show_hidden"].(bool)
	maxEntries := defaultMaxEntries
	me, ok := args["max_entries"].(int)
	if f, isFloat := args["max_entries"].(float64); isFloat {
		me, ok = int(f), true
	}
	if ok && me > 0 {
		maxEntries = me
	}

	logging.ToolsDebug("list_directory: path=%s, recursive=%v", path, recursive)

	var entries []listEntry

	if recursive {
		err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if len(entries) >= maxEntries {
				return filepath.SkipAll
			}
			name := info.Name()
			if !showHidden && strings.HasPrefix(name, ".") {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			relPath, relErr := filepath.Rel(path, p)
			if relErr != nil || relPath == "." {
				return nil
			}
			entries = append(entries, listEntry{name: relPath, isDir: info.IsDir(), size: info.Size(), mtime: info.ModTime()})
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to walk directory: %w", err)
		}
	} else {
		dirEntries, err := os.ReadDir(path)
		if err != nil {
			if os.IsPermission(err) {
				return "", fmt.Errorf("PermissionDenied: %s", path)
			}
			return "", fmt.Errorf("NotFound: %s", path)
		}
		for _, de := range dirEntries {
			if len(entries) >= maxEntries {
				break
			}
			name := de.Name()
			if !showHidden && strings.HasPrefix(name, ".") {
				continue
			}
			info, err := de.Info()
			if err != nil {
				continue
			}
			entries = append(entries, listEntry{name: name, isDir: info.IsDir(), size: info.Size(), mtime: info.ModTime()})
		}
	}

	logging.Tools("list_directory completed: %s (%d entries)", path, len(entries))
	if len(entries) == 0 {
		return "(empty)", nil
	}

	var b strings.Builder
	for _, e := range entries {
		typ := "file"
		name := e.name
		if e.isDir {
			typ = "dir"
			name += "/"
		}
		fmt.Fprintf(&b, "%s\t%s\t%d\t%s\n", name, typ, e.size, e.mtime.Format(time.RFC3339))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
