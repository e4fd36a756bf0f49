package service

import (
	"context"
	"fmt"
	"os"

	"github.com/andresuchdata/invengine/internal/dataset"
	"github.com/andresuchdata/invengine/internal/drive"
	"github.com/andresuchdata/invengine/internal/repository/postgres"
	"github.com/andresuchdata/invengine/internal/storage"
)

const (
	SourceCSV      = "csv"
	SourceStorage  = "storage"
	SourcePostgres = "postgres"
	SourceDrive    = "drive"
)

// DatasetSource loads the engine input from one backend.
type DatasetSource interface {
	Name() string
	Load(ctx context.Context) (*dataset.Dataset, error)
}

type csvSource struct {
	dir string
}

// NewCSVSource reads the input tables from a local directory.
func NewCSVSource(dir string) DatasetSource {
	return &csvSource{dir: dir}
}

func (s *csvSource) Name() string { return SourceCSV }

func (s *csvSource) Load(context.Context) (*dataset.Dataset, error) {
	return dataset.LoadCSVDir(s.dir)
}

type storageSource struct {
	store  storage.ObjectStorage
	prefix string
}

// NewStorageSource downloads the input tables from a bucket prefix into a
// scratch directory before parsing them.
func NewStorageSource(store storage.ObjectStorage, prefix string) DatasetSource {
	return &storageSource{store: store, prefix: prefix}
}

func (s *storageSource) Name() string { return SourceStorage }

func (s *storageSource) Load(ctx context.Context) (*dataset.Dataset, error) {
	dir, err := os.MkdirTemp("", "invengine-inputs-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if _, err := storage.FetchInputs(ctx, s.store, s.prefix, dir); err != nil {
		return nil, err
	}
	return dataset.LoadCSVDir(dir)
}

type postgresSource struct {
	loader *postgres.DatasetLoader
}

// NewPostgresSource reads the input tables from the database.
func NewPostgresSource(loader *postgres.DatasetLoader) DatasetSource {
	return &postgresSource{loader: loader}
}

func (s *postgresSource) Name() string { return SourcePostgres }

func (s *postgresSource) Load(ctx context.Context) (*dataset.Dataset, error) {
	return s.loader.Load(ctx)
}

type driveSource struct {
	downloader *drive.Downloader
	folder     string
}

// NewDriveSource downloads CSV or XLSX input tables from a Google Drive
// folder path.
func NewDriveSource(downloader *drive.Downloader, folder string) DatasetSource {
	return &driveSource{downloader: downloader, folder: folder}
}

func (s *driveSource) Name() string { return SourceDrive }

func (s *driveSource) Load(ctx context.Context) (*dataset.Dataset, error) {
	dir, err := os.MkdirTemp("", "invengine-drive-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if _, err := s.downloader.FetchInputs(ctx, s.folder, dir); err != nil {
		return nil, err
	}
	return dataset.LoadCSVDir(dir)
}
