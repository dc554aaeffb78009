// Command portal serves the client portal API and hosts its operator
// subcommands.
//
//	portal [serve]
//	portal migrate [up|down|status] [--json]
//	portal jobs trigger --job idempotency:cleanup
//	portal jobs stats|scheduled [--limit N] [--json]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/pflag"

	"github.com/clientportal/portal/cmd/portal/cli"
	"github.com/clientportal/portal/internal/app"
	"github.com/clientportal/portal/internal/platform/migrate"
	"github.com/clientportal/portal/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// splitCommand separates the subcommand from its flags. serve is the default.
func splitCommand(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "serve", args
	}
	return args[0], args[1:]
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	command, rest := splitCommand(args)

	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := app.NewLogger(cfg)

	switch command {
	case "serve":
		if err := serve(ctx, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			return 1
		}
		return 0
	case "migrate":
		return runMigrate(ctx, cfg, rest, stdout, stderr)
	case "jobs":
		return runJobs(ctx, cfg, rest, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q (expected serve, migrate or jobs)\n", command)
		return 2
	}
}

func runMigrate(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	asJSON := flags.Bool("json", false, "print the result as JSON")
	table := flags.String("table", "", "bookkeeping table (default schema_migrations)")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	direction := "up"
	if flags.NArg() > 0 {
		direction = flags.Arg(0)
	}

	conn, err := migrate.Open(ctx, cfg.PGDSN)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate: connect: %v\n", err)
		return 1
	}
	defer conn.Close()

	manager := migrate.NewManager(conn, migrations.FS, migrate.WithTable(*table))
	return cli.MigrateCommand(ctx, manager, cli.MigrateOptions{
		Direction:  direction,
		JSONOutput: *asJSON,
		Stdout:     stdout,
		Stderr:     stderr,
	})
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("jobs", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	job := flags.String("job", "", "task type to enqueue with trigger")
	limit := flags.Int("limit", 10, "page size for scheduled")
	asJSON := flags.BoolP("json", "j", false, "print the result as JSON")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() == 0 {
		_, _ = fmt.Fprintln(stderr, "jobs: action required (trigger, stats or scheduled)")
		return 2
	}

	jobsCLI := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, cfg.IdempotencyRetention)
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs: close: %v\n", err)
		}
	}()
	return jobsCLI.JobsCommand(ctx, cli.JobsOptions{
		Action:     flags.Arg(0),
		Job:        *job,
		Limit:      *limit,
		JSONOutput: *asJSON,
		Stdout:     stdout,
		Stderr:     stderr,
	})
}
