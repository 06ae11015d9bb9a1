package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/loan-desk/internal/classifier"
	"github.com/sells-group/loan-desk/internal/lifecycle"
	"github.com/sells-group/loan-desk/internal/monitoring"
	"github.com/sells-group/loan-desk/internal/resilience"
	"github.com/sells-group/loan-desk/internal/store"
)

// loanEnv bundles everything a command needs to drive the lifecycle.
type loanEnv struct {
	Store      store.Store
	Classifier classifier.Backend
	Engine     *lifecycle.Engine
	Metrics    *monitoring.Metrics
}

// Close releases the store.
func (e *loanEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "file":
		return store.NewFile(cfg.Store.Path), nil
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		retry := resilience.FromRetryConfig(cfg.Store.RetryAttempts, cfg.Store.RetryBackoffMs, 0)
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}, retry)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openClassifier loads the trained model, falling back to the credit score
// rule when the artifact is unusable.
func openClassifier() classifier.Backend {
	backend, err := classifier.Open(cfg.Classifier.ModelPath)
	if err != nil {
		zap.L().Warn("classifier: trained model unavailable, using credit score rule",
			zap.String("model_path", cfg.Classifier.ModelPath),
			zap.Int("cibil_threshold", classifier.FallbackCibilThreshold),
			zap.Error(err),
		)
		return backend
	}

	fields := []zap.Field{zap.String("model_path", cfg.Classifier.ModelPath)}
	if v, ok := backend.(interface{ Version() string }); ok {
		fields = append(fields, zap.String("version", v.Version()))
	}
	zap.L().Info("classifier: trained model loaded", fields...)
	return backend
}

// initEnv opens and migrates the store and builds the engine. metrics may be nil.
func initEnv(ctx context.Context, metrics *monitoring.Metrics) (*loanEnv, error) {
	policy, err := lifecycle.ParseQuotePolicy(cfg.Lifecycle.QuotePolicy)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	backend := openClassifier()
	metrics.SetClassifierFallback(backend.Kind() == classifier.KindFallback)

	return &loanEnv{
		Store:      st,
		Classifier: backend,
		Engine:     lifecycle.New(st, backend, lifecycle.Options{Policy: policy, Metrics: metrics}),
		Metrics:    metrics,
	}, nil
}
