package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/inventory/internal/storage/postgres"
)

type fakeSchema struct {
	up, down []int
	applied  []postgres.MigrationInfo
	err      error
	closed   bool
}

func (f *fakeSchema) MigrateUp(_ context.Context, steps int) error {
	f.up = append(f.up, steps)
	return f.err
}

func (f *fakeSchema) MigrateDown(_ context.Context, steps int) error {
	f.down = append(f.down, steps)
	return f.err
}

func (f *fakeSchema) MigrationStatus(context.Context) (int64, int, error) {
	return 2, 2, nil
}

func (f *fakeSchema) Migrations(context.Context) ([]postgres.MigrationInfo, error) {
	return f.applied, f.err
}

func (f *fakeSchema) Close() error {
	f.closed = true
	return nil
}

type result struct {
	code           int
	stdout, stderr string
}

func exec(t *testing.T, s *fakeSchema, env map[string]string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	open := func(_ context.Context, dsn string) (schema, error) {
		if dsn == "bad" {
			return nil, errors.New("connection refused")
		}
		return s, nil
	}
	code := execute(context.Background(), args, func(k string) string { return env[k] }, open, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestExecute_Commands(t *testing.T) {
	s := &fakeSchema{applied: []postgres.MigrationInfo{
		{Version: 1, Name: "create_orders", Applied: true},
		{Version: 2, Name: "order_search_indexes"},
	}}

	res := exec(t, s, nil, "-dsn=postgres://x", "up")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "version=2 applied=2\n", res.stdout)
	assert.True(t, s.closed)

	res = exec(t, s, nil, "-dsn=postgres://x", "DOWN")
	require.Equal(t, 0, res.code)
	res = exec(t, s, nil, "-dsn=postgres://x", "-steps=3", "down")
	require.Equal(t, 0, res.code)
	res = exec(t, s, nil, "-dsn=postgres://x", "-steps=1", "up")
	require.Equal(t, 0, res.code)

	assert.Equal(t, []int{0, 1}, s.up)
	assert.Equal(t, []int{1, 3}, s.down)

	res = exec(t, s, nil, "-dsn=postgres://x", "status")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "version=2")

	res = exec(t, s, nil, "-dsn=postgres://x", "list")
	require.Equal(t, 0, res.code)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "0001")
	assert.Contains(t, lines[2], "false")
}

func TestExecute_DSNFromEnv(t *testing.T) {
	res := exec(t, &fakeSchema{}, map[string]string{"INV_POSTGRES_DSN": "postgres://env"}, "status")
	assert.Equal(t, 0, res.code)
}

func TestExecute_Failures(t *testing.T) {
	tests := []struct {
		name     string
		schema   *fakeSchema
		args     []string
		wantCode int
		wantErr  string
	}{
		{name: "no command", args: []string{"-dsn=x"}, wantCode: 2, wantErr: "usage"},
		{name: "no dsn", args: []string{"up"}, wantCode: 2, wantErr: "INV_POSTGRES_DSN"},
		{name: "bad flag", args: []string{"-nope", "up"}, wantCode: 2},
		{name: "open fails", args: []string{"-dsn=bad", "up"}, wantCode: 1, wantErr: "connection refused"},
		{name: "unknown command", args: []string{"-dsn=x", "redo"}, wantCode: 1, wantErr: "unknown command"},
		{name: "migration fails", schema: &fakeSchema{err: errors.New("syntax error")}, args: []string{"-dsn=x", "up"}, wantCode: 1, wantErr: "up: syntax error"},
		{name: "list fails", schema: &fakeSchema{err: errors.New("denied")}, args: []string{"-dsn=x", "list"}, wantCode: 1, wantErr: "list: denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.schema
			if s == nil {
				s = &fakeSchema{}
			}
			res := exec(t, s, nil, tt.args...)
			assert.Equal(t, tt.wantCode, res.code)
			assert.Contains(t, res.stderr, tt.wantErr)
		})
	}
}

func TestExecute_Postgres(t *testing.T) {
	dsn := os.Getenv("INV_POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("INV_POSTGRES_TEST_DSN is not set")
	}
	var stdout, stderr bytes.Buffer

	code := execute(context.Background(), []string{"-dsn=" + dsn, "up"}, os.Getenv, openPostgres, &stdout, &stderr)
	if code != 0 && strings.Contains(stderr.String(), "ping postgres") {
		t.Skipf("postgres is not available: %s", stderr.String())
	}
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "version=3 applied=3")
}
