// Команда migrate управляет схемой PostgreSQL:
//
//	migrate [-dsn DSN] [-steps N] up|down|status|list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/vladislavdragonenkov/inventory/internal/storage/postgres"
)

const commandTimeout = 30 * time.Second

// schema — операции хранилища, которые нужны утилите.
type schema interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (int64, int, error)
	Migrations(ctx context.Context) ([]postgres.MigrationInfo, error)
	Close() error
}

type opener func(ctx context.Context, dsn string) (schema, error)

func openPostgres(ctx context.Context, dsn string) (schema, error) {
	return postgres.Open(ctx, dsn)
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	code := execute(ctx, os.Args[1:], os.Getenv, openPostgres, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// execute разбирает аргументы, выполняет команду и возвращает код выхода процесса.
func execute(ctx context.Context, args []string, getenv func(string) string, open opener, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dsn := fs.String("dsn", "", "PostgreSQL DSN (default $INV_POSTGRES_DSN)")
	steps := fs.Int("steps", 0, "migrations to apply; 0 means all for up and one for down")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stderr, "usage: migrate [-dsn DSN] [-steps N] up|down|status|list")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	if strings.TrimSpace(*dsn) == "" {
		*dsn = getenv("INV_POSTGRES_DSN")
	}
	if strings.TrimSpace(*dsn) == "" {
		_, _ = fmt.Fprintln(stderr, "migrate: -dsn or INV_POSTGRES_DSN is required")
		return 2
	}

	store, err := open(ctx, *dsn)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	defer store.Close()

	if err := command(ctx, store, fs.Arg(0), *steps, stdout); err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	return 0
}

var errUnknownCommand = errors.New("unknown command (use up|down|status|list)")

func command(ctx context.Context, s schema, name string, steps int, out io.Writer) error {
	switch strings.ToLower(name) {
	case "up":
		if err := s.MigrateUp(ctx, steps); err != nil {
			return fmt.Errorf("up: %w", err)
		}
	case "down":
		if err := s.MigrateDown(ctx, max(steps, 1)); err != nil {
			return fmt.Errorf("down: %w", err)
		}
	case "status":
	case "list":
		return list(ctx, s, out)
	default:
		return fmt.Errorf("%q: %w", name, errUnknownCommand)
	}

	version, applied, err := s.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	_, err = fmt.Fprintf(out, "version=%d applied=%d\n", version, applied)
	return err
}

func list(ctx context.Context, s schema, out io.Writer) error {
	infos, err := s.Migrations(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
	for _, info := range infos {
		_, _ = fmt.Fprintf(tw, "%04d\t%s\t%t\n", info.Version, info.Name, info.Applied)
	}
	return tw.Flush()
}
