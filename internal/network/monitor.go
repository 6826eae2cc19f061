// Package network tracks reachability of the remote data service.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker"
)

// ErrOffline is returned when calls are short-circuited by an open breaker.
var ErrOffline = errors.New("network: remote data service unreachable")

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config tunes the breaker and the probe loop.
type Config struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before going offline
	OpenTimeout      time.Duration // time spent offline before a trial call
	ProbeInterval    time.Duration
	ProbeTimeout     time.Duration
}

// DefaultConfig returns the defaults used by the service.
func DefaultConfig() Config {
	return Config{
		Name:             "remote-data",
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
		ProbeInterval:    15 * time.Second,
		ProbeTimeout:     5 * time.Second,
	}
}

// Monitor reports connectivity. It starts connected and only flips to
// offline after the breaker trips.
type Monitor struct {
	cb     *gobreaker.CircuitBreaker
	pinger Pinger
	cfg    Config
	logger *slog.Logger
}

// NewMonitor constructs a Monitor around pinger.
func NewMonitor(pinger Pinger, cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = def.ProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: reachable,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("connectivity changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &Monitor{
		cb:     gobreaker.NewCircuitBreaker(settings),
		pinger: pinger,
		cfg:    cfg,
		logger: logger,
	}
}

// reachable reports whether err still proves the remote answered. Only
// transport-level failures count against the breaker.
func reachable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; 57P01-57P03 mean the server is going away.
		switch {
		case strings.HasPrefix(pgErr.Code, "08"):
			return false
		case pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return false
		}
		return true
	}
	return false
}

// IsConnected reports whether the remote data service is considered reachable.
func (m *Monitor) IsConnected() bool {
	if m == nil {
		return true
	}
	return m.cb.State() != gobreaker.StateOpen
}

// Do runs fn through the breaker. Calls made while offline fail fast with ErrOffline.
func (m *Monitor) Do(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	_, err := m.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrOffline, m.cfg.Name)
	}
	return err
}

// Probe pings the remote once through the breaker.
func (m *Monitor) Probe(ctx context.Context) error {
	if m.pinger == nil {
		return nil
	}
	return m.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		defer cancel()
		return m.pinger.Ping(ctx)
	})
}

// Run probes on every tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Probe(ctx); err != nil {
				m.logger.Debug("connectivity probe failed", slog.Any("error", err))
			}
		}
	}
}

// State exposes the breaker state for health reporting.
func (m *Monitor) State() string {
	if m == nil {
		return gobreaker.StateClosed.String()
	}
	return m.cb.State().String()
}
