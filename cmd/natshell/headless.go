package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// runHeadless runs exactly one turn non-interactively: the instruction is
// taken from args if present, otherwise read whole from stdin. The reply
// goes to stdout; a failed turn writes to stderr and returns a non-nil
// error so main sets a non-zero exit code.
func runHeadless(ctx context.Context, a *app, args []string) error {
	instruction := strings.Join(args, " ")
	if instruction == "" {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return fmt.Errorf("read instruction from stdin: %w", err)
		}
		instruction = strings.TrimSpace(string(data))
	}
	if instruction == "" {
		return fmt.Errorf("no instruction given: pass one as an argument or pipe it on stdin")
	}

	if cliLogger != nil {
		cliLogger.Info("processing instruction", zap.String("input", instruction))
	}

	reply, err := a.loop.Run(ctx, instruction)
	if err != nil {
		if cliLogger != nil {
			cliLogger.Warn("turn failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	fmt.Println(reply)
	return nil
}
