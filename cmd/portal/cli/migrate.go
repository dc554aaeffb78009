// Package cli implements the operator subcommands of the portal binary.
// Each command writes to the provided streams and returns a process exit
// code.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/clientportal/portal/internal/platform/migrate"
)

// Migrator applies and reverts schema migrations.
type Migrator interface {
	Up(ctx context.Context) ([]string, error)
	Down(ctx context.Context) (string, error)
	Status(ctx context.Context) ([]string, error)
}

// MigrateOptions defines the flags of the migrate command.
type MigrateOptions struct {
	Direction  string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// MigrateSummary is the JSON form of a migrate run.
type MigrateSummary struct {
	Direction string   `json:"direction"`
	Files     []string `json:"files"`
}

// MigrateCommand runs one migrate action and prints what it touched.
func MigrateCommand(ctx context.Context, m Migrator, opts MigrateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	var (
		files []string
		err   error
	)
	switch opts.Direction {
	case "up":
		files, err = m.Up(ctx)
	case "down":
		var name string
		name, err = m.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			_, _ = fmt.Fprintln(opts.Stderr, "migrate down: nothing to revert")
			return 0
		}
		if name != "" {
			files = []string{name}
		}
	case "status":
		files, err = m.Status(ctx)
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "migrate: unknown direction %q (expected up, down or status)\n", opts.Direction)
		return 2
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "migrate %s: %v\n", opts.Direction, err)
		return 1
	}
	if files == nil {
		files = []string{}
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(MigrateSummary{Direction: opts.Direction, Files: files}); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "migrate: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	if len(files) == 0 {
		_, _ = fmt.Fprintf(opts.Stdout, "migrate %s: nothing to do\n", opts.Direction)
		return 0
	}
	verb := map[string]string{"up": "applied", "down": "reverted", "status": "applied"}[opts.Direction]
	for _, f := range files {
		_, _ = fmt.Fprintf(opts.Stdout, "%s %s\n", verb, f)
	}
	return 0
}
