package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrforge/leave-engine/api"
	"github.com/hrforge/leave-engine/leave"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and daily scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	eng, store, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	// First boot: install the built-in policy so grants can be computed
	// before an operator uploads one.
	active, err := store.ActivePolicy(ctx)
	if err != nil {
		return err
	}
	if active == nil {
		def := leave.DefaultPolicy()
		if err := store.SavePolicy(ctx, def); err != nil {
			return err
		}
		if err := store.ActivatePolicy(ctx, def.Version); err != nil {
			return err
		}
		log.Info().Str("version", def.Version).Msg("installed built-in policy as active")
	}

	handler := api.NewHandler(eng, store, store, log)
	router := api.NewRouter(handler)

	scheduler := api.NewDailyScheduler(eng, log)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.SchedulerInterval()
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
