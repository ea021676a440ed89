package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/devrun/internal/config"
	"github.com/loykin/devrun/internal/history"
	"github.com/loykin/devrun/internal/history/factory"
	"github.com/loykin/devrun/internal/logger"
	"github.com/loykin/devrun/internal/metrics"
	"github.com/loykin/devrun/internal/registry"
	"github.com/loykin/devrun/internal/server"
	"github.com/loykin/devrun/internal/supervisor"
)

// defaultConfigFile is picked up from the working directory when --config is
// not given; without it the built-in two-service session is used.
const defaultConfigFile = "devrun.toml"

func loadConfig(flags *GlobalFlags) (*config.FileConfig, error) {
	path := flags.ConfigPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	var fc *config.FileConfig
	if path == "" {
		fc = config.Default()
	} else {
		var err error
		if fc, err = config.Load(path); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if flags.PidDir != "" {
		fc.PidDir = flags.PidDir
	}
	return fc, nil
}

func newLogger(flags *GlobalFlags) *slog.Logger {
	return logger.New(os.Stderr, slog.LevelInfo, flags.NoColor)
}

func openHistory(fc *config.FileConfig, log *slog.Logger) history.Sink {
	if fc.History.DSN == "" {
		return nil
	}
	sink, err := factory.NewSinkFromDSN(fc.History.DSN)
	if err != nil {
		// Audit only: a broken sink must not keep the session from starting.
		log.Warn("history sink disabled", "dsn", fc.History.DSN, "err", err)
		return nil
	}
	return sink
}

// runUp starts every configured service and blocks until all children exit or
// an interrupt arrives, then performs the full shutdown.
func runUp(cmd *cobra.Command, flags *GlobalFlags) error {
	fc, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := newLogger(flags)
	specs, err := fc.Specs()
	if err != nil {
		return err
	}

	metrics.MustRegisterDefault()
	reg := registry.New(fc.PidDir)

	opts := []supervisor.Option{supervisor.WithGlobalEnv(fc.Env)}
	sink := openHistory(fc, log)
	if sink != nil {
		defer func() { _ = sink.Close() }()
		opts = append(opts, supervisor.WithHistory(sink))
	}

	sup := supervisor.New(reg, cmd.OutOrStdout(), log, opts...)

	var statusSrv interface{ Close() error }
	if fc.Server.Listen != "" {
		srv := server.NewServer(fc.Server.Listen, "", sup)
		statusSrv = srv
		log.Info("status server listening", "addr", fc.Server.Listen)
	}
	if statusSrv != nil {
		defer func() { _ = statusSrv.Close() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sup.LaunchAll(specs); err != nil {
		// A missing service invalidates the session: tear down whatever
		// already launched before surfacing the failure.
		sup.Shutdown(context.Background())
		return err
	}

	sup.Wait(ctx)
	// The handler stays installed through teardown so a second interrupt is
	// absorbed by the idempotent Shutdown instead of killing the supervisor
	// mid-cleanup.
	sup.Shutdown(context.Background())
	return nil
}

// runStop performs registry-driven termination only; nothing is launched.
// Running it against an empty registry is a no-op.
func runStop(cmd *cobra.Command, flags *GlobalFlags) error {
	fc, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := newLogger(flags)
	reg := registry.New(fc.PidDir)

	opts := []supervisor.Option{}
	sink := openHistory(fc, log)
	if sink != nil {
		defer func() { _ = sink.Close() }()
		opts = append(opts, supervisor.WithHistory(sink))
	}

	sup := supervisor.New(reg, cmd.OutOrStdout(), log, opts...)
	sup.TerminateRecorded(context.Background())
	return nil
}

// runStatus lists recorded processes and probes each pid for liveness.
func runStatus(cmd *cobra.Command, flags *GlobalFlags) error {
	fc, err := loadConfig(flags)
	if err != nil {
		return err
	}
	reg := registry.New(fc.PidDir)
	recs, err := reg.All()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		_, _ = fmt.Fprintln(out, "no recorded processes")
		return nil
	}
	for _, rec := range recs {
		state := "dead"
		if supervisor.ProcessExists(rec.PID) {
			state = "alive"
		}
		_, _ = fmt.Fprintf(out, "%-16s pid=%-8d %s\n", rec.Name, rec.PID, state)
	}
	return nil
}
