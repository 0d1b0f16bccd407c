// Package shell builds errand callables that run a local command.
package shell

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/mitchellh/mapstructure"

	"errands/internal/domain"
)

type Params struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// New validates params and returns the callable. Validation failures surface
// at registration time, not on first run.
func New(params map[string]any) (domain.Callable, error) {
	var p Params
	if err := mapstructure.Decode(params, &p); err != nil {
		return nil, fmt.Errorf("shell params: %w", err)
	}
	if p.Command == "" {
		return nil, fmt.Errorf("shell params: command is required")
	}

	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, p.Command, p.Args...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("shell error: %v; out=%s", err, string(out))
		}
		return nil
	}, nil
}
