package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/api"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides LEAVE_HTTP_ADDR)")
	serveCmd.Flags().Bool("admin", false, "Mount reset and demo scenario routes")
	serveCmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origins")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	addr, _ := cmd.Flags().GetString("addr")
	admin, _ := cmd.Flags().GetBool("admin")
	origins, _ := cmd.Flags().GetStringSlice("cors-origin")

	cfg, err := loadConfig(dbPath, addr)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := api.NewHandler(a.store, a.coordinator, a.logger)
	router := api.NewRouter(handler, api.RouterOptions{
		Metrics:        a.metrics,
		AllowedOrigins: origins,
		EnableAdmin:    admin,
	})

	server := &http.Server{
		Addr:         cfg.App.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("addr", cfg.App.Addr), zap.Bool("admin", admin))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	a.logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
