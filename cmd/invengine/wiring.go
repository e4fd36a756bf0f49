package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/andresuchdata/invengine/internal/analytics"
	"github.com/andresuchdata/invengine/internal/cache"
	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/drive"
	"github.com/andresuchdata/invengine/internal/export"
	"github.com/andresuchdata/invengine/internal/repository"
	"github.com/andresuchdata/invengine/internal/repository/postgres"
	"github.com/andresuchdata/invengine/internal/service"
	"github.com/andresuchdata/invengine/internal/storage"
	"github.com/andresuchdata/invengine/pkg/logger"
)

// appState holds the resources a command opens, so the After hook can
// release them whichever command ran.
type appState struct {
	cfg *config.Config

	db      *postgres.DB
	repo    repository.AnalysisRepository
	store   storage.ObjectStorage
	drive   *drive.Downloader
	cache   cache.SummaryCache
	service *service.AnalysisService
}

// Open connects the configured backends and builds the analysis service.
func (a *appState) Open(ctx context.Context, withDB bool, outputDir string) error {
	if a.cfg == nil {
		return errors.New("configuration not loaded")
	}
	opts := service.Options{
		Engine:       analytics.NewEngine(a.cfg.Engine),
		ExportPrefix: a.cfg.Storage.ExportPrefix,
	}

	if withDB {
		db, err := postgres.NewDB(ctx, a.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db
		a.repo = postgres.NewAnalysisRepository(db)
		opts.Repo = a.repo
	}

	if a.cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(storage.MinioConfig{
			Endpoint:  a.cfg.Storage.Endpoint,
			AccessKey: a.cfg.Storage.AccessKey,
			SecretKey: a.cfg.Storage.SecretKey,
			Bucket:    a.cfg.Storage.Bucket,
			Region:    a.cfg.Storage.Region,
			UseSSL:    a.cfg.Storage.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialise object storage: %w", err)
		}
		a.store = client
		opts.Store = client
	}

	if a.cfg.Drive.Enabled {
		key, err := os.ReadFile(a.cfg.Drive.CredentialsFile)
		if err != nil {
			return fmt.Errorf("failed to read drive credentials: %w", err)
		}
		svc, err := drive.NewService(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to initialise drive client: %w", err)
		}
		a.drive = drive.NewDownloader(svc)
	}

	summaryCache, err := cache.NewSummaryCache(ctx, a.cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("summary cache unavailable, continuing without it")
		summaryCache = cache.NewNoopSummaryCache()
	}
	a.cache = summaryCache
	opts.Cache = summaryCache

	if outputDir == "" {
		outputDir = a.cfg.App.OutputDir
	}
	opts.Exporter = export.NewExporter(outputDir)

	a.service = service.NewAnalysisService(opts)
	return nil
}

// resolveSource maps a source name and location to a dataset source. An
// empty location falls back to the configured input directory or prefix.
func (a *appState) resolveSource(name, location string) (service.DatasetSource, error) {
	switch name {
	case service.SourceCSV, "":
		if location == "" {
			location = a.cfg.App.InputDir
		}
		return service.NewCSVSource(location), nil
	case service.SourceStorage:
		if a.store == nil {
			return nil, errors.New("storage source requires STORAGE_ENABLED")
		}
		if location == "" {
			location = a.cfg.Storage.InputPrefix
		}
		return service.NewStorageSource(a.store, location), nil
	case service.SourcePostgres:
		if a.db == nil {
			return nil, errors.New("postgres source requires a database connection")
		}
		return service.NewPostgresSource(postgres.NewDatasetLoader(a.db)), nil
	case service.SourceDrive:
		if a.drive == nil {
			return nil, errors.New("drive source requires DRIVE_ENABLED")
		}
		if location == "" {
			location = a.cfg.Drive.Folder
		}
		return service.NewDriveSource(a.drive, location), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want csv, storage, postgres or drive)", name)
	}
}

func (a *appState) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
