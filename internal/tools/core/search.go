package core

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Barent/natshell/internal/logging"
	"github.com/Barent/natshell/internal/tools"
)

// globMetaChars are the filepath.Match special characters; a file_pattern
// containing any of these is treated as a glob. Otherwise the tool falls
// back to a plain-text grep.
const globMetaChars = "*?["

// SearchFilesTool returns the single consolidated search tool: name-glob
// when file_pattern looks like a glob, otherwise a content grep.
func SearchFilesTool() *tools.Tool {
	return &tools.Tool{
		Name:        "search_files",
		Description: "Find files by name pattern (glob) or search file contents (grep), auto-detected from file_pattern",
		Category:    tools.CategoryCode,
		Priority:    85,
		Execute:     executeSearchFiles,
		Schema: tools.ToolSchema{
			Required: []string{"pattern"},
			Properties: map[string]tools.Property{
				"pattern": {
					Type:        "string",
					Description: "Regex/plain text to grep for (not used when file_pattern is a glob)",
				},
				"path": {
					Type:        "string",
					Description: "Base directory to search (default: current directory)",
				},
				"file_pattern": {
					Type:        "string",
					Description: "If it contains * ? or [ ], file names are matched against it as a glob and pattern is not used; otherwise pattern is grepped line-by-line, in files named exactly file_pattern when it is set",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of results (default: 100)",
					Default:     100,
				},
			},
		},
	}
}

func executeSearchFiles(ctx context.Context, args map[string]any) (string, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	basePath := "."
	if p, ok := args["path"].(string); ok && p != "" {
		basePath = p
	}
	filePattern, _ := args["file_pattern"].(string)
	maxResults := 100
	mr, ok := args["max_results"].(int)
	if f, isFloat := args["max_results"].(float64); isFloat {
		mr, ok = int(f), true
	}
	if ok && mr > 0 {
		maxResults = mr
	}

	if strings.ContainsAny(filePattern, globMetaChars) {
		return globSearch(basePath, filePattern, maxResults)
	}
	return grepSearch(basePath, pattern, filePattern, maxResults)
}

func globSearch(basePath, pattern string, maxResults int) (string, error) {
	logging.ToolsDebug("search_files(glob): pattern=%s base=%s", pattern, basePath)

	var matches []string
	err := filepath.Walk(basePath, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if len(matches) >= maxResults {
			return filepath.SkipAll
		}
		if info.IsDir() {
			name := info.Name()
			if strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, info.Name()); ok {
			rel, _ := filepath.Rel(basePath, p)
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk directory: %w", err)
	}

	logging.Tools("search_files(glob) completed: %s (%d matches)", pattern, len(matches))
	if len(matches) == 0 {
		return "No files found matching pattern: " + pattern, nil
	}
	return strings.Join(matches, "\n"), nil
}

func grepSearch(basePath, pattern, filePattern string, maxResults int) (string, error) {
	logging.ToolsDebug("search_files(grep): pattern=%s base=%s", pattern, basePath)

	re, err := regexp.Compile(pattern)
	if err != nil {
		re, err = regexp.Compile(regexp.QuoteMeta(pattern))
		if err != nil {
			return "", fmt.Errorf("invalid pattern: %w", err)
		}
	}

	info, err := os.Stat(basePath)
	if err != nil {
		return "", fmt.Errorf("NotFound: %s", basePath)
	}

	var files []string
	if info.IsDir() {
		err := filepath.Walk(basePath, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				name := info.Name()
				if strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" {
					return filepath.SkipDir
				}
				return nil
			}
			if filePattern != "" {
				if ok, _ := filepath.Match(filePattern, info.Name()); !ok {
					return nil
				}
			}
			files = append(files, p)
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to walk directory: %w", err)
		}
	} else {
		files = []string{basePath}
	}

	type match struct {
		file string
		line int
		text string
	}
	var matches []match
	for _, f := range files {
		if len(matches) >= maxResults {
			break
		}
		fh, err := os.Open(f)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(fh)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			if re.MatchString(scanner.Text()) {
				matches = append(matches, match{file: f, line: lineNum, text: strings.TrimSpace(scanner.Text())})
				if len(matches) >= maxResults {
					break
				}
			}
		}
		fh.Close()
	}

	logging.Tools("search_files(grep) completed: %s (%d matches)", pattern, len(matches))
	if len(matches) == 0 {
		return "No matches found for pattern: " + pattern, nil
	}
	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "%s:%d: %s\n", m.file, m.line, m.text)
	}
	return sb.String(), nil
}
