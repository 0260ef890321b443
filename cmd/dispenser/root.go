package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/dispenser/internal/logging"
	"github.com/aretw0/dispenser/pkg/adapters/file"
	"github.com/aretw0/dispenser/pkg/adapters/memory"
	"github.com/aretw0/dispenser/pkg/adapters/redis"
	"github.com/aretw0/dispenser/pkg/adapters/sqlite"
	"github.com/aretw0/dispenser/pkg/config"
	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/aretw0/dispenser/pkg/fleet"
	"github.com/aretw0/dispenser/pkg/persistence/middleware"
	"github.com/aretw0/dispenser/pkg/ports"
	"github.com/spf13/cobra"
)

// app carries what every command resolves before running.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	closers []func() error
	// storeMiddleware wraps the store inside the validation layer.
	storeMiddleware []middleware.Middleware
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	a := &app{logger: logging.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "dispenser",
		Short: "Dispenser is a stateful controller for gumball and vending machines",
		Long: `Dispenser drives inventory-bound machines through payment, activation and refill.
Machines are persisted in a store (file, sqlite, redis or memory) so every
command, the HTTP server and the MCP server share the same fleet.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("env-file", "", "Dotenv file to load before reading the environment (default .env)")
	flags.String("store", "", "Snapshot store: memory, file, sqlite or redis (env DISPENSER_STORE)")
	flags.String("dir", "", "Data directory for the file and sqlite stores (env DISPENSER_DIR)")
	flags.String("redis-url", "", "Redis URL for the redis store (env DISPENSER_REDIS_URL)")
	flags.String("sqlite-path", "", "Database path for the sqlite store (env DISPENSER_SQLITE_PATH)")
	flags.String("log-level", "", "Log level: debug, info, warn or error (env DISPENSER_LOG_LEVEL)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newDemoCmd(),
		newRunCmd(),
		newMachineCmd(a),
		newTriggerCmd(a, "insert <machine-id>", "Insert a payment", domain.TriggerInsertPayment),
		newTriggerCmd(a, "cancel <machine-id>", "Refund the held payment", domain.TriggerCancelPayment),
		newTriggerCmd(a, "activate <machine-id>", "Turn the crank", domain.TriggerActivate),
		newRefillCmd(a),
		newGraphCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
	)
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// configure loads the environment and applies flag overrides.
func (a *app) configure(cmd *cobra.Command) error {
	var dotenv []string
	if f, _ := cmd.Flags().GetString("env-file"); f != "" {
		dotenv = append(dotenv, f)
	}
	cfg, err := config.Load(dotenv...)
	if err != nil {
		return err
	}

	override := func(flag string, dst *string) {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	override("store", &cfg.Store)
	override("dir", &cfg.Dir)
	override("redis-url", &cfg.RedisURL)
	override("sqlite-path", &cfg.SQLitePath)
	override("log-level", &cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewWithWriter(cmd.ErrOrStderr(), level)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Failed to close resource", "err", err)
		}
	}
	a.closers = nil
}

// openStore builds the configured snapshot store and, for redis, a matching locker.
func (a *app) openStore(ctx context.Context) (ports.SnapshotStore, ports.DistributedLocker, error) {
	switch a.cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), nil, nil

	case config.StoreFile:
		return file.New(filepath.Join(a.cfg.Dir, "machines")), nil, nil

	case config.StoreSQLite:
		path := a.cfg.SQLitePath
		if path == "" {
			path = filepath.Join(a.cfg.Dir, "dispenser.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil, nil

	case config.StoreRedis:
		client, err := redis.Connect(ctx, a.cfg.RedisURL, 5, time.Second)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, client.Close)
		return redis.NewFromClient(client), redis.NewLocker(client, "dispenser:"), nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", a.cfg.Store)
}

// openFleet wires the store into a fleet manager.
func (a *app) openFleet(ctx context.Context, opts ...fleet.Option) (*fleet.Manager, error) {
	store, locker, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	mws := append([]middleware.Middleware{middleware.NewValidationMiddleware()}, a.storeMiddleware...)
	store = middleware.Chain(store, mws...)
	base := []fleet.Option{
		fleet.WithLogger(a.logger),
		fleet.WithLockTTL(a.cfg.LockTTL),
	}
	if locker != nil {
		base = append(base, fleet.WithLocker(locker))
	}
	return fleet.NewManager(store, append(base, opts...)...), nil
}

// seedFleet applies the fleet file, if one is configured.
func (a *app) seedFleet(ctx context.Context, mgr *fleet.Manager) error {
	if a.cfg.FleetFile == "" {
		return nil
	}
	seeds, err := config.LoadFleet(a.cfg.FleetFile)
	if err != nil {
		return err
	}
	for _, s := range seeds {
		if _, err := mgr.Ensure(ctx, s.ID, s.Stock); err != nil {
			return fmt.Errorf("failed to seed machine %s: %w", s.ID, err)
		}
	}
	a.logger.Info("Fleet seeded", "file", a.cfg.FleetFile, "machines", len(seeds))
	return nil
}
