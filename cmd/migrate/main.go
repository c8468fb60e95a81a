package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/storeconsole/internal/stores"
	"github.com/angelmondragon/storeconsole/pkg/config"
	"github.com/angelmondragon/storeconsole/pkg/db"
	"github.com/angelmondragon/storeconsole/pkg/logger"
	"github.com/angelmondragon/storeconsole/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	storeID string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate|store")
	flag.StringVar(&opts.dir, "dir", "", "goose migrations directory (empty uses the migrations built into the binary)")
	flag.StringVar(&opts.name, "name", "", "migration name for create, store name for store")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.StringVar(&opts.storeID, "store-id", "", "optional store id for -cmd=store")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	if err := run(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	sourceDir := opts.dir
	if sourceDir == "" {
		sourceDir = migrate.DefaultDir
	}

	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(sourceDir, opts.name, time.Now())
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(sourceDir); err != nil {
			return fmt.Errorf("validate migrations: %w", err)
		}
		fmt.Println("migration validation passed")
		return nil
	}

	if cfg.FeatureFlags.UseSQLite && opts.cmd != "store" {
		return errors.New("goose migrations target postgres; sqlite databases are auto-migrated on startup")
	}

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if opts.cmd == "store" {
		return registerStore(ctx, cfg, logg, dbClient, opts)
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}

	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}

// registerStore inserts a store row so events can be ingested for it.
func registerStore(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, opts options) error {
	if opts.name == "" {
		return errors.New("missing -name for store")
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	dto := stores.CreateStoreDTO{Name: opts.name}
	if opts.storeID != "" {
		id, err := uuid.Parse(opts.storeID)
		if err != nil {
			return fmt.Errorf("invalid -store-id: %w", err)
		}
		dto.ID = id
	}

	store, err := stores.NewRepository(dbClient.DB()).Create(ctx, dto)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	fmt.Println("created store:", store.ID)
	return nil
}
