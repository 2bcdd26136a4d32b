package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic encounter and billing API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(fn func(m *db.Migrator) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		m, err := db.NewMigrator(cfg.DatabaseURL, migrations.FS)
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(m)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *db.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
				return nil
			})
		},
	})

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return withMigrator(func(m *db.Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s).\n", steps)
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(downCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *db.Migrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				if !st.Applied {
					fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Version %d (dirty: %t)\n", st.Version, st.Dirty)
				return nil
			})
		},
	})

	return cmd
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage doctor work schedules",
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Create a work schedule and its bookable slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req scheduling.GenerateScheduleRequest
			req.DoctorID, _ = cmd.Flags().GetString("doctor")
			req.WorkDate, _ = cmd.Flags().GetString("date")
			req.StartTime, _ = cmd.Flags().GetString("start")
			req.EndTime, _ = cmd.Flags().GetString("end")
			req.SlotMinutes, _ = cmd.Flags().GetInt("slot-minutes")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			logger := newLogger(cfg)
			pool, err := db.NewPool(ctx, poolConfig(cfg, "clinic-server schedule"), logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			a, err := newApp(cfg, deps{DB: pool, Registry: prometheus.NewRegistry(), Logger: logger})
			if err != nil {
				return err
			}
			ws, err := a.scheduling.GenerateSchedule(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created work schedule %s for doctor %s on %s with %d slot(s).\n",
				ws.ID, ws.DoctorID, req.WorkDate, len(ws.Slots))
			return nil
		},
	}
	generateCmd.Flags().String("doctor", "", "Doctor id")
	generateCmd.Flags().String("date", "", "Work date (YYYY-MM-DD)")
	generateCmd.Flags().String("start", "08:00", "First slot start (HH:MM)")
	generateCmd.Flags().String("end", "17:00", "Last slot end (HH:MM)")
	generateCmd.Flags().Int("slot-minutes", 30, "Slot length in minutes")
	_ = generateCmd.MarkFlagRequired("doctor")
	_ = generateCmd.MarkFlagRequired("date")

	cmd.AddCommand(generateCmd)
	return cmd
}

func poolConfig(cfg *config.Config, appName string) db.PoolConfig {
	return db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		AppName:  appName,
	}
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: requests are authenticated from X-User-ID / X-User-Role headers")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg, "clinic-server"), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	rdb, err := openRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if rdb != nil {
		defer rdb.Close()
		logger.Info().Msg("connected to redis")
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open blob store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	d := deps{DB: pool, Redis: rdb, Blobs: blobs, Registry: reg, Logger: logger}
	a, err := newApp(cfg, d)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire services")
	}
	e := newServer(cfg, a, d)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
