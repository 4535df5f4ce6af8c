package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Barent/natshell/internal/agent"
)

// cliConfirmer prompts on stdin/stdout for AWAIT_CONFIRM approvals.
type cliConfirmer struct{}

func (c *cliConfirmer) Confirm(ctx context.Context, req agent.PendingConfirm) (bool, error) {
	fmt.Printf("\n%s wants to run %s\n", "natshell", req.ToolName)
	if req.Reason != "" {
		fmt.Printf("  reason: %s\n", req.Reason)
	}
	for k, v := range req.Args {
		fmt.Printf("  %s: %v\n", k, v)
	}
	fmt.Print("Allow? [y/N] ")

	answer, err := readLine()
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// cliSudoPrompter reads a sudo password from the terminal without echo.
type cliSudoPrompter struct{}

func (c *cliSudoPrompter) PromptSudo(ctx context.Context, toolName string) (string, bool, error) {
	fmt.Printf("sudo authentication failed for %s. Password (leave blank to cancel): ", toolName)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := readLine()
		if err != nil {
			return "", false, err
		}
		line = strings.TrimSpace(line)
		return line, line != "", nil
	}

	pw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", false, fmt.Errorf("read sudo password: %w", err)
	}
	password := strings.TrimSpace(string(pw))
	return password, password != "", nil
}

func readLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}
