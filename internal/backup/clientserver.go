package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/clinicbase/medrec-backend/internal/errors"
)

// pgConn holds the connection parameters parsed from a postgres URL.
type pgConn struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// parsePostgresURL extracts connection parameters from a postgres:// URL.
func parsePostgresURL(rawURL string) (*pgConn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid database URL: %v", apperrors.ErrInvalidInput, err)
	}
	conn := &pgConn{
		Host:     u.Hostname(),
		Port:     u.Port(),
		Database: strings.TrimPrefix(u.Path, "/"),
	}
	if conn.Host == "" {
		conn.Host = "localhost"
	}
	if conn.Port == "" {
		conn.Port = "5432"
	}
	if u.User != nil {
		conn.User = u.User.Username()
		conn.Password, _ = u.User.Password()
	}
	if conn.Database == "" {
		return nil, fmt.Errorf("%w: database URL has no database name", apperrors.ErrInvalidInput)
	}
	return conn, nil
}

// isLocalHost reports whether the database host resolves to this machine,
// which is when a docker-exec wrapper makes sense.
func (c *pgConn) isLocalHost() bool {
	switch c.Host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// clientServerVariant backs up a postgres database through the pg_dump and
// pg_restore client tools, optionally wrapped in docker exec when the server
// runs in a local container.
type clientServerVariant struct {
	conn      *pgConn
	container string
	timeout   time.Duration
}

func newClientServerVariant(databaseURL, container string, timeout time.Duration) (*clientServerVariant, error) {
	conn, err := parsePostgresURL(databaseURL)
	if err != nil {
		return nil, err
	}
	return &clientServerVariant{conn: conn, container: container, timeout: timeout}, nil
}

func (v *clientServerVariant) payloadExt() string { return ".sql" }

func (v *clientServerVariant) useDocker() bool {
	return v.container != "" && v.conn.isLocalHost()
}

// command builds the tool invocation, docker-wrapped when the server runs in
// a local container. PGPASSWORD travels through the environment either way;
// it must never appear in argv.
func (v *clientServerVariant) command(ctx context.Context, tool string, args ...string) *exec.Cmd {
	if v.useDocker() {
		dockerArgs := []string{
			"exec", "-i",
			"-e", "PGPASSWORD=" + v.conn.Password,
			v.container,
			tool, "-U", v.conn.User, "-d", v.conn.Database,
		}
		dockerArgs = append(dockerArgs, args...)
		return exec.CommandContext(ctx, "docker", dockerArgs...)
	}

	toolArgs := []string{
		"-h", v.conn.Host,
		"-p", v.conn.Port,
		"-U", v.conn.User,
		"-d", v.conn.Database,
	}
	toolArgs = append(toolArgs, args...)
	cmd := exec.CommandContext(ctx, tool, toolArgs...)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+v.conn.Password)
	return cmd
}

// run executes cmd under the configured timeout, reporting stderr verbatim
// on failure.
func (v *clientServerVariant) run(ctx context.Context, cmd func(context.Context) *exec.Cmd) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	c := cmd(ctx)
	var stderr bytes.Buffer
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s timed out after %s", apperrors.ErrExternalTool, c.Path, v.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%w: %s", apperrors.ErrExternalTool, msg)
	}
	return nil
}

// dumpTo runs pg_dump in custom format with stdout directed at dest.
func (v *clientServerVariant) dumpTo(ctx context.Context, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}

	runErr := v.run(ctx, func(ctx context.Context) *exec.Cmd {
		cmd := v.command(ctx, "pg_dump", "-F", "c")
		cmd.Stdout = out
		return cmd
	})
	closeErr := out.Close()
	if runErr != nil {
		os.Remove(dest)
		return runErr
	}
	if closeErr != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to close dump file: %w", closeErr)
	}
	return nil
}

func (v *clientServerVariant) dump(ctx context.Context, dir, timestamp string) (string, error) {
	dest := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", v.conn.Database, timestamp))
	if err := v.dumpTo(ctx, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// snapshot dumps the live database before a restore overwrites it. A server
// that cannot be dumped aborts the restore rather than proceeding without a
// safety copy.
func (v *clientServerVariant) snapshot(ctx context.Context, dir, timestamp string) (string, error) {
	dest := filepath.Join(dir, snapshotPrefix+timestamp+".sql")
	if err := v.dumpTo(ctx, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// restore feeds the dump to pg_restore, dropping existing objects first so
// the result matches the archive exactly.
func (v *clientServerVariant) restore(ctx context.Context, payloadPath string) error {
	in, err := os.Open(payloadPath)
	if err != nil {
		return fmt.Errorf("failed to open restore payload: %w", err)
	}
	defer in.Close()

	return v.run(ctx, func(ctx context.Context) *exec.Cmd {
		cmd := v.command(ctx, "pg_restore", "-c", "--if-exists")
		cmd.Stdin = in
		return cmd
	})
}
