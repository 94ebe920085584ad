package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pulpitwriter/pulpit/internal/generation"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// serveCommand runs the generation server with the configured provider.
func serveCommand(opts *options) *cobra.Command {
	var listenAddr string
	var keepAlive time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generation over HTTP and server-sent events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(opts, false)
			if err != nil {
				return err
			}
			defer func() { _ = rt.logger.Sync() }()
			if rt.cfg.ServerURL != "" {
				rt.logger.Info("ignoring server_url while serving", zap.String("server_url", rt.cfg.ServerURL))
				rt.cfg.ServerURL = ""
			}
			if listenAddr == "" {
				listenAddr = rt.cfg.ListenAddr
			}

			be, err := rt.newBackend(!opts.NoTranscripts)
			if err != nil {
				return err
			}
			server := generation.NewServer(be.generator, be.subscriber,
				generation.WithKeepAlive(keepAlive),
				generation.WithServerLogger(rt.logger),
			)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, listenAddr, server.Handler(), be.close, rt.logger)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from config)")
	cmd.Flags().DurationVar(&keepAlive, "keep-alive", 15*time.Second, "SSE keep-alive interval")
	return cmd
}

// serve runs handler until ctx ends, then drains connections and closes the backend.
func serve(ctx context.Context, addr string, handler http.Handler, closeBackend func() error, logger *zap.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("serving", zap.String("addr", listener.Addr().String()))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		closeErr := closeBackend()
		return errors.Join(shutdownErr, closeErr)
	})
	return group.Wait()
}
