package tor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/tornago"
)

// Daemon runs a private Tor process for the lifetime of a crawl session so
// that chhaya works without a system Tor installation. Bootstrap takes
// between several seconds and a few minutes.
type Daemon struct {
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
	logger         *slog.Logger
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithStartupTimeout bounds how long Start waits for bootstrap.
func WithStartupTimeout(timeout time.Duration) DaemonOption {
	return func(d *Daemon) {
		d.startupTimeout = timeout
	}
}

// WithDaemonLogger sets the logger for lifecycle messages.
func WithDaemonLogger(l *slog.Logger) DaemonOption {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDaemon returns an unstarted daemon.
func NewDaemon(opts ...DaemonOption) *Daemon {
	d := &Daemon{
		startupTimeout: 3 * time.Minute,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches Tor on OS-assigned SOCKS and control ports and blocks
// until it has bootstrapped or the startup timeout elapses. If ctx is
// cancelled meanwhile, the process is stopped and ctx.Err() returned.
func (d *Daemon) Start(ctx context.Context) error {
	cfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	d.logger.Info("starting embedded Tor daemon", "timeout", d.startupTimeout)
	started := time.Now()

	process, err := tornago.StartTorDaemon(cfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort
		return err
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	d.logger.Info("embedded Tor daemon ready",
		"socks", d.socksAddr,
		"control", process.ControlAddr(),
		"elapsed", time.Since(started).Round(time.Second),
	)
	return nil
}

// Stop terminates the daemon. Safe to call on an unstarted or stopped daemon.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	return err
}

// Running reports whether the daemon has been started and not stopped.
func (d *Daemon) Running() bool {
	return d.process != nil
}

// SocksAddr is the daemon's SOCKS5 address, empty when not running.
func (d *Daemon) SocksAddr() string {
	return d.socksAddr
}

// NewClient returns a Client bound to the daemon's SOCKS port.
func (d *Daemon) NewClient(timeout time.Duration, opts ...ClientOption) (*Client, error) {
	if !d.Running() {
		return nil, ErrDaemonNotRunning
	}
	return NewClient(d.socksAddr, timeout, opts...)
}
