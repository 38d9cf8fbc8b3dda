// Package server initializes and runs the transfer proxy server. It wires
// the object store client, the metadata database, the HTTP endpoint and the
// expiry sweep, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dropgate/dropgate/internal/logging"
	"github.com/dropgate/dropgate/internal/server/cleanup"
	"github.com/dropgate/dropgate/internal/server/config"
	"github.com/dropgate/dropgate/internal/server/httpapi"
	"github.com/dropgate/dropgate/internal/server/metrics"
	"github.com/dropgate/dropgate/internal/server/migrations"
	"github.com/dropgate/dropgate/internal/server/proxy"
	"github.com/dropgate/dropgate/internal/server/repositories/files"
	"github.com/dropgate/dropgate/internal/server/storage"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	httpSrv *httpapi.Server
	sweeper *cleanup.Service
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON()

	store, err := storage.NewClient(ctx, storage.Options{
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		Region:          c.S3Region,
		BaseEndpoint:    c.S3BaseEndpoint,
		UsePathStyle:    c.S3UsePathStyle,
		CallTimeout:     c.StoreCallTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	fileRepo := files.NewPostgresRepository(db)

	p := proxy.New(store, c.S3Bucket, c.PresignTTL, logger)
	httpSrv := httpapi.New(c.EndpointAddr, p, fileRepo, c.SecretKey, logger)
	sweeper := cleanup.New(fileRepo, store, c.S3Bucket, c.CleanupInterval, logger)

	metrics.Register()

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		httpSrv: httpSrv,
		sweeper: sweeper,
	}, nil
}

func (app *App) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	return goose.UpContext(ctx, app.db, ".")
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.runMigrations(ctx); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpSrv.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}

	return nil
}
