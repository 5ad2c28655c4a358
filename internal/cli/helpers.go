package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/navigate-learning/navigate/internal/daemon"
	"github.com/navigate-learning/navigate/internal/domain"
)

// openDaemon wires the services for a one-shot command. Info logs from the
// services would interleave with command output, so only warnings are shown.
func openDaemon() (*daemon.Daemon, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Jobs.Enabled = false
	cfg.Logging.File = ""
	if lvl, err := log.ParseLevel(cfg.Logging.Level); err != nil || lvl > log.WarnLevel {
		cfg.Logging.Level = "warn"
	}
	if _, err := daemon.SetupLogging(cfg.Logging); err != nil {
		return nil, err
	}
	return daemon.NewWithConfig(cfg)
}

// resolveUser maps a username or email to its account ID. Anything else is
// taken as a raw ledger key.
func resolveUser(ctx context.Context, d *daemon.Daemon, ref string) (string, error) {
	u, err := d.Users.GetUserByLogin(ctx, ref)
	switch {
	case err == nil:
		return u.ID, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return ref, nil
	default:
		return "", err
	}
}

// newLineScanner creates a line scanner from a reader.
func newLineScanner(r io.Reader) *bufio.Scanner {
	return bufio.NewScanner(r)
}

// readLine returns the first line of r with surrounding space removed.
func readLine(r io.Reader) string {
	sc := newLineScanner(r)
	if sc.Scan() {
		return strings.TrimSpace(sc.Text())
	}
	return ""
}
