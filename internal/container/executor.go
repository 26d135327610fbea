package container

import (
	"context"
	"os/exec"
)

// CommandExecutor abstracts command execution for testing
type CommandExecutor interface {
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// DefaultCommandExecutor uses os/exec directly
type DefaultCommandExecutor struct{}

func (e *DefaultCommandExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}
