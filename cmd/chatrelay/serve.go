package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leofalp/chatrelay/internal/server"
	"github.com/leofalp/chatrelay/providers/memory/inmemory"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		history bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP with server-sent events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Addr
			}

			srv := server.New(a.orch.Catalog(), a.relay, a.logger, a.cfg.Configured(), a.orch.FallbackModel())
			if history {
				srv.WithHistory(inmemory.New())
			}
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("listening", slog.String("addr", addr))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&history, "history", true, "keep per-chat history in memory and serve /v1/chats")
	return cmd
}
