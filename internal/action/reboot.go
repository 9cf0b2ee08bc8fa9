package action

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/nickicker/internal/domain"
)

var ErrNoRebootCommand = errors.New("reboot command is empty")

// RebootAction restarts the host, either by running Command or, with
// Method "syscall", through sync(2) and reboot(2).
type RebootAction struct {
	Logger  *zap.Logger
	Method  string
	Command []string

	exec    func(ctx context.Context, name string, args ...string) ([]byte, error)
	syscall func() error
}

func NewReboot(logger *zap.Logger, method string, command []string) *RebootAction {
	return &RebootAction{
		Logger:  logger,
		Method:  method,
		Command: command,
		exec: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
		syscall: systemReboot,
	}
}

func (a *RebootAction) Run(ctx context.Context, ev domain.Event) error {
	a.Logger.Warn("rebooting_host",
		zap.String("method", a.Method),
		zap.Strings("command", a.Command),
		zap.String("episode_id", ev.EpisodeID),
		zap.Duration("outage", ev.Duration()),
	)

	if a.Method == "syscall" {
		return a.syscall()
	}
	if len(a.Command) == 0 || a.Command[0] == "" {
		return ErrNoRebootCommand
	}
	out, err := a.exec(ctx, a.Command[0], a.Command[1:]...)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", a.Command[0], err, msg)
		}
		return fmt.Errorf("%s: %w", a.Command[0], err)
	}
	return nil
}
