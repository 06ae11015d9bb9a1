package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/loan-desk/internal/api"
	"github.com/sells-group/loan-desk/internal/auth"
	"github.com/sells-group/loan-desk/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the loan desk HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, monitoring.NewMetrics())
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		return runServer(ctx, env, port)
	},
}

// runServer serves the API and, when enabled, the portfolio checker until
// ctx is cancelled, then shuts the server down gracefully.
func runServer(ctx context.Context, env *loanEnv, port int) error {
	handler := api.NewServer(env.Engine, auth.NewDemo(), env.Metrics, cfg.Server).Handler()
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("store", cfg.Store.Driver),
			zap.String("classifier", string(env.Classifier.Kind())),
			zap.String("quote_policy", string(env.Engine.Policy())),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	})

	if cfg.Monitoring.Enabled {
		checker := monitoring.NewChecker(
			monitoring.NewCollector(monitoring.LoaderFunc(env.Engine.Snapshot), string(env.Classifier.Kind())),
			monitoring.NewAlerter(cfg.Monitoring),
			env.Metrics,
			cfg.Monitoring,
		)
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})
	}

	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
