package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devadigapratham/leveling3d/api"
	"github.com/devadigapratham/leveling3d/api/handlers"
	"github.com/devadigapratham/leveling3d/config"
	"github.com/devadigapratham/leveling3d/leveling"
	"github.com/devadigapratham/leveling3d/logging"
	"github.com/devadigapratham/leveling3d/meshstore"
	"github.com/devadigapratham/leveling3d/printercfg"
	"github.com/devadigapratham/leveling3d/raft"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "leveling-server",
		Short:         "Serves the bed-leveling API: active mesh, saved mesh slots and probe settings",
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.New(), cmd.Flags())
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(logging.Options{
		Name:  "leveling",
		Level: cfg.LogLevel,
		JSON:  cfg.LogJSON,
		File:  cfg.LogFile,
	})
	defer logger.Close()

	// Printer configuration and settings file
	accessor := printercfg.NewAccessor(cfg.Profiles(), logger)
	if profile, err := accessor.Locate(); err != nil {
		logger.Warn("printer configuration not found yet", "error", err)
	} else {
		logger.Info("detected printer", "model", profile.Model, "config", profile.ConfigPath)
	}
	params, err := printercfg.LoadParams(cfg.ParamsFile)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", cfg.ParamsFile, err)
	}
	logger.Debug("loaded settings file", "path", params.Path())

	// Create the slot store
	slots, err := meshstore.NewStore(cfg.SlotDir, logger)
	if err != nil {
		return fmt.Errorf("failed to create slot store: %w", err)
	}

	service := leveling.NewService(accessor, params, slots, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handler := handlers.NewHandler(service, handlers.NewMetrics(reg), logger)

	// Create the journal node
	var node *raft.Node
	if cfg.Journal {
		node, err = raft.NewNode(&raft.Config{
			NodeID:   cfg.NodeID,
			RaftAddr: cfg.RaftAddr,
			RaftDir:  cfg.JournalDir,
		}, service, slots, logger)
		if err != nil {
			return fmt.Errorf("failed to create journal: %w", err)
		}
		defer func() {
			if err := node.Shutdown(); err != nil {
				logger.Error("error shutting down journal", "error", err)
			}
		}()
		if err := node.WaitForLeader(30 * time.Second); err != nil {
			return err
		}
		handler.WithJournal(node)
		logger.Info("write journal enabled", "dir", cfg.JournalDir, "applied_index", node.GetFSM().AppliedIndex())
	}

	// Setup HTTP router
	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(handler, cfg.APIPrefix, reg)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr, "prefix", cfg.APIPrefix)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down HTTP server", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
