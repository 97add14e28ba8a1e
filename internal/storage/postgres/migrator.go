package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir    = "sql/migrations"
	migrationLockKey = int64(48151623)
	lockTimeout      = 5 * time.Second
)

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS inv_schema_migrations (
    version    BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// 0001_create_orders.up.sql
var migrationFileName = regexp.MustCompile(`^(\d+)_(\w+)\.(up|down)\.sql$`)

var errStoreNotReady = errors.New("postgres store is not initialized")

type migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// MigrationInfo — встроенная миграция и признак её применения.
type MigrationInfo struct {
	Version int64
	Name    string
	Applied bool
}

// migrationStep — одна миграция, выполняемая в своей транзакции.
type migrationStep struct {
	m    migration
	down bool
}

func (st migrationStep) String() string {
	dir := "up"
	if st.down {
		dir = "down"
	}
	return fmt.Sprintf("%s %04d_%s", dir, st.m.Version, st.m.Name)
}

// MigrateUp применяет ещё не применённые миграции по возрастанию версии; steps=0 применяет все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.migrate(ctx, func(all []migration, applied []int64) ([]migrationStep, error) {
		return planUp(all, applied, steps), nil
	})
}

// MigrateDown откатывает последние steps миграций; steps<=0 откатывает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	return s.migrate(ctx, func(all []migration, applied []int64) ([]migrationStep, error) {
		return planDown(all, applied, max(steps, 1))
	})
}

// MigrationStatus возвращает последнюю применённую версию и число применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (version int64, count int, err error) {
	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(applied) > 0 {
		version = applied[len(applied)-1]
	}
	return version, len(applied), nil
}

// Migrations перечисляет встроенные миграции по возрастанию версии.
func (s *Store) Migrations(ctx context.Context) ([]MigrationInfo, error) {
	all, err := loadMigrations(migrationsFS)
	if err != nil {
		return nil, err
	}
	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]MigrationInfo, len(all))
	for i, m := range all {
		_, ok := slices.BinarySearch(applied, m.Version)
		infos[i] = MigrationInfo{Version: m.Version, Name: m.Name, Applied: ok}
	}
	return infos, nil
}

type migrationPlanner func(all []migration, applied []int64) ([]migrationStep, error)

// migrate выполняет план под advisory lock, чтобы параллельные экземпляры не применяли миграции дважды.
func (s *Store) migrate(ctx context.Context, plan migrationPlanner) error {
	if s == nil || s.db == nil {
		return errStoreNotReady
	}
	all, err := loadMigrations(migrationsFS)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockKey)
	}()

	applied, err := queryApplied(ctx, conn)
	if err != nil {
		return err
	}
	steps, err := plan(all, applied)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if err := runStep(ctx, conn, step); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appliedVersions(ctx context.Context) ([]int64, error) {
	if s == nil || s.db == nil {
		return nil, errStoreNotReady
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()
	return queryApplied(ctx, conn)
}

// queryApplied создаёт таблицу учёта при необходимости и возвращает применённые версии по возрастанию.
func queryApplied(ctx context.Context, conn *sql.Conn) ([]int64, error) {
	if _, err := conn.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}
	rows, err := conn.QueryContext(ctx, `SELECT version FROM inv_schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

func runStep(ctx context.Context, conn *sql.Conn, step migrationStep) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", step, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	body, record, args := step.m.Up, `INSERT INTO inv_schema_migrations (version, name) VALUES ($1, $2)`, []any{step.m.Version, step.m.Name}
	if step.down {
		body, record, args = step.m.Down, `DELETE FROM inv_schema_migrations WHERE version = $1`, []any{step.m.Version}
	}

	if _, err = tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	if _, err = tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("%s: record: %w", step, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", step, err)
	}
	return nil
}

// planUp выбирает неприменённые миграции по возрастанию; steps=0 снимает ограничение.
func planUp(all []migration, applied []int64, steps int) []migrationStep {
	var plan []migrationStep
	for _, m := range all {
		if steps > 0 && len(plan) == steps {
			break
		}
		if !slices.Contains(applied, m.Version) {
			plan = append(plan, migrationStep{m: m})
		}
	}
	return plan
}

// planDown откатывает steps последних применённых версий, начиная с самой новой.
func planDown(all []migration, applied []int64, steps int) ([]migrationStep, error) {
	var plan []migrationStep
	for i := len(applied) - 1; i >= 0 && len(plan) < steps; i-- {
		idx := slices.IndexFunc(all, func(m migration) bool { return m.Version == applied[i] })
		if idx < 0 {
			return nil, fmt.Errorf("cannot rollback unknown migration version %d", applied[i])
		}
		plan = append(plan, migrationStep{m: all[idx], down: true})
	}
	return plan, nil
}

// loadMigrations читает пары up/down из fsys и сортирует их по версии.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts := migrationFileName.FindStringSubmatch(entry.Name())
		if parts == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", entry.Name())
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration version in %s: %w", entry.Name(), err)
		}

		raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", entry.Name())
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{Version: version, Name: parts[2]}
			byVersion[version] = m
		}
		if m.Name != parts[2] {
			return nil, fmt.Errorf("migration %d has two names: %s and %s", version, m.Name, parts[2])
		}
		target := &m.Up
		if parts[3] == "down" {
			target = &m.Down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", parts[3], version)
		}
		*target = body
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	all := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %d_%s must have both up and down files", m.Version, m.Name)
		}
		all = append(all, *m)
	}
	slices.SortFunc(all, func(a, b migration) int { return int(a.Version - b.Version) })
	return all, nil
}
