// Package runcode implements the run_code tool: writes a snippet to a
// temp file and either interprets it directly or compiles then runs it.
// Every temp artifact is removed on all exit paths.
package runcode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Barent/natshell/internal/logging"
	"github.com/Barent/natshell/internal/tools"
)

type languageSpec struct {
	ext      string
	compiled bool
	// interpret returns the argv to run the interpreter directly.
	interpret func(file string) []string
	// compile returns the argv to compile file into binPath.
	compile func(file, binPath string) []string
}

var languages = map[string]languageSpec{
	"python":     {ext: ".py", interpret: func(f string) []string { return []string{"python3", f} }},
	"javascript": {ext: ".js", interpret: func(f string) []string { return []string{"node", f} }},
	"bash":       {ext: ".sh", interpret: func(f string) []string { return []string{"bash", f} }},
	"ruby":       {ext: ".rb", interpret: func(f string) []string { return []string{"ruby", f} }},
	"perl":       {ext: ".pl", interpret: func(f string) []string { return []string{"perl", f} }},
	"php":        {ext: ".php", interpret: func(f string) []string { return []string{"php", f} }},
	"c": {
		ext: ".c", compiled: true,
		compile: func(f, bin string) []string { return []string{"cc", "-O0", "-o", bin, f} },
	},
	"cpp": {
		ext: ".cpp", compiled: true,
		compile: func(f, bin string) []string { return []string{"c++", "-O0", "-o", bin, f} },
	},
	"rust": {
		ext: ".rs", compiled: true,
		compile: func(f, bin string) []string { return []string{"rustc", "-O", "-o", bin, f} },
	},
	"go": {
		ext: ".go", compiled: true,
		compile: func(f, bin string) []string { return []string{"go", "build", "-o", bin, f} },
	},
}

// Runtime supplies the truncation cap shared with the shell tool's output
// policy.
type Runtime struct {
	TruncateCap int
	Truncate    func(string, int) (string, bool)
}

// RunCodeTool returns the run_code tool bound to rt.
func (rt *Runtime) RunCodeTool() *tools.Tool {
	return &tools.Tool{
		Name:        "run_code",
		Description: "Write a code snippet to a temp file and execute it (compiling first for compiled languages)",
		Category:    tools.CategoryTest,
		Priority:    70,
		Execute:     rt.executeRunCode,
		Schema: tools.ToolSchema{
			Required: []string{"language", "code"},
			Properties: map[string]tools.Property{
				"language": {
					Type:        "string",
					Description: "One of: python, javascript, bash, ruby, perl, php, c, cpp, rust, go",
				},
				"code":  {Type: "string", Description: "Source code to run"},
				"stdin": {Type: "string", Description: "Optional stdin to feed the program"},
			},
		},
	}
}

func (rt *Runtime) executeRunCode(ctx context.Context, args map[string]any) (string, error) {
	language, _ := args["language"].(string)
	code, _ := args["code"].(string)
	stdin, _ := args["stdin"].(string)

	spec, ok := languages[language]
	if !ok {
		return "", fmt.Errorf("unsupported language: %s", language)
	}

	dir, err := os.MkdirTemp("", "natshell-run-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "snippet"+spec.ext)
	if err := os.WriteFile(srcPath, []byte(code), 0o600); err != nil {
		return "", fmt.Errorf("failed to write snippet: %w", err)
	}

	logging.ToolsDebug("run_code: language=%s bytes=%d", language, len(code))

	execCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var argv []string
	if spec.compiled {
		binPath := filepath.Join(dir, "snippet.out")
		compileArgv := spec.compile(srcPath, binPath)
		compileCmd := exec.CommandContext(execCtx, compileArgv[0], compileArgv[1:]...)
		out, err := compileCmd.CombinedOutput()
		if err != nil {
			return string(out), fmt.Errorf("compilation failed: %w", err)
		}
		argv = []string{binPath}
	} else {
		argv = spec.interpret(srcPath)
	}

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()

	result := string(out)
	if rt.Truncate != nil {
		var wasTruncated bool
		result, wasTruncated = rt.Truncate(result, rt.TruncateCap)
		if detail := tools.ExecutionDetailFromContext(ctx); detail != nil {
			detail.Truncated = wasTruncated
		}
	}

	if err != nil {
		return result, fmt.Errorf("execution failed: %w", err)
	}

	logging.Tools("run_code completed: language=%s", language)
	return result, nil
}
