package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"naimuAdmin/internal/config"
	"naimuAdmin/internal/console"
	"naimuAdmin/internal/console/events"
	"naimuAdmin/internal/console/export"
	consolehttp "naimuAdmin/internal/console/http"
	"naimuAdmin/internal/console/listview"
	"naimuAdmin/internal/console/permission"
	"naimuAdmin/internal/console/workflow"
	"naimuAdmin/internal/console/ws"
)

type application struct {
	errorLog *log.Logger
	infoLog  *log.Logger
	db       *sql.DB
	secret   []byte

	redis         *redis.Client
	publisher     events.Publisher
	notifications *ws.NotificationHub
	deps          *console.Deps
	console       *consolehttp.Server
}

// stdLogger adapts the INFO/ERROR log.Loggers to the console Logger interface.
type stdLogger struct {
	info  *log.Logger
	error *log.Logger
}

func (l stdLogger) Infof(format string, args ...interface{})  { l.info.Printf(format, args...) }
func (l stdLogger) Errorf(format string, args ...interface{}) { l.error.Printf(format, args...) }

// permissionSource loads role_permissions and layers the optional YAML file
// on top of it.
type permissionSource struct {
	repo *permission.Repo
	file string
}

func (s permissionSource) Load(ctx context.Context) (*permission.Table, error) {
	table, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if s.file != "" {
		overrides, err := permission.LoadFile(s.file)
		if err != nil {
			return nil, err
		}
		table.Merge(overrides)
	}
	return table, nil
}

func initializeApp(ctx context.Context, cfg config.Config, db *sql.DB, errorLog, infoLog *log.Logger) (*application, error) {
	logger := stdLogger{info: infoLog, error: errorLog}
	app := &application{
		errorLog: errorLog,
		infoLog:  infoLog,
		db:       db,
		secret:   []byte(cfg.Auth.JWTSecret),
	}

	consoleCfg, err := console.LoadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			errorLog.Printf("redis unavailable, capabilities are not pinned: %v", err)
		}
	}

	app.publisher = events.Noop{}
	if cfg.NATS.URL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			return nil, err
		}
		app.publisher = pub
	}

	var exporter listview.Exporter = export.NewInlineSink()
	if cfg.S3.Bucket != "" {
		sink, err := export.NewS3Sink(export.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		exporter = sink
	}

	workflows, err := workflow.Load(cfg.Files.Workflows)
	if err != nil {
		return nil, fmt.Errorf("load workflows: %w", err)
	}

	source := permissionSource{repo: permission.NewRepo(db), file: cfg.Files.Permissions}
	table, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	gate := permission.NewGate(table)
	console.StartPermissionRefresher(ctx, source, gate, time.Duration(cfg.PermissionRefreshSeconds)*time.Second, logger)

	app.notifications = ws.NewNotificationHub(logger, consolehttp.IdentifyAdmin)

	app.deps = &console.Deps{
		DB:            db,
		Driver:        cfg.Database.Driver,
		Logger:        logger,
		Config:        consoleCfg,
		Redis:         app.redis,
		Publisher:     app.publisher,
		Exporter:      exporter,
		Permissions:   gate,
		Workflows:     workflows,
		Notifications: app.notifications,
	}
	return app, nil
}

func (app *application) close() {
	if err := app.publisher.Close(); err != nil {
		app.errorLog.Printf("close publisher: %v", err)
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.errorLog.Printf("close redis: %v", err)
		}
	}
}

func openDB(driver, dsn string) (*sql.DB, error) {
	if driver == "postgres" {
		driver = "pgx"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		log.Printf("Failed to open DB: %v", err)
		return nil, err
	}
	if err = db.Ping(); err != nil {
		log.Printf("Failed to ping DB: %v", err)
		return nil, err
	}
	db.SetMaxIdleConns(35)
	log.Println("Successfully connected to database")
	return db, nil
}
