package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"icpaydocs/internal/app"
	"icpaydocs/internal/tools/seoexport"
)

var (
	logLevel  string
	exportDir string

	cfg    app.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "icpaydocs",
	Short:         "ICPay documentation site",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = app.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		logger, err = newLogger(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve documentation pages, sitemap.xml and robots.txt",
	RunE:  runServe,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write sitemap.xml and robots.txt for static hosting",
	RunE:  runExport,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	exportCmd.Flags().StringVar(&exportDir, "out", "public", "directory to write SEO artifacts into")
	rootCmd.AddCommand(serveCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	return config.Build()
}

func runServe(cmd *cobra.Command, args []string) error {
	cache, db, err := openCache(cmd.Context())
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	ledgers := app.NewLedgerClient(cfg, &http.Client{Timeout: 15 * time.Second}, cache, logger.Named("ledgers"))

	handler, err := app.NewServer(cfg, os.DirFS(cfg.ContentDir), ledgers, logger)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("icpaydocs listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.Bool("staging", cfg.IsStaging()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

// openCache uses MySQL when a DSN is configured so replicas share ledger revalidation.
func openCache(ctx context.Context) (app.ResponseCache, *sql.DB, error) {
	if cfg.DSN == "" {
		return app.NewMemoryCache(), nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := app.NewDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}
	if err := app.EnsureCacheSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create cache table: %w", err)
	}
	logger.Info("using mysql response cache")
	return app.NewSQLCache(db), db, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	manifest, err := app.LoadManifest()
	if err != nil {
		return err
	}

	res, err := seoexport.Export(cfg, os.DirFS(cfg.ContentDir), manifest, exportDir, time.Now)
	if err != nil {
		return fmt.Errorf("export seo artifacts: %w", err)
	}

	logger.Info("wrote seo artifacts",
		zap.String("sitemap", res.SitemapPath),
		zap.String("robots", res.RobotsPath),
		zap.Int("urls", len(res.Entries)))
	return nil
}
