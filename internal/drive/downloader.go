package drive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/invengine/internal/dataset"
)

var (
	ErrFolderNotFound = errors.New("drive folder not found")
	ErrNoInputs       = errors.New("no input tables in drive folder")
)

// Downloader pulls the input tables of one analysis from a Drive folder.
type Downloader struct {
	client Client
}

func NewDownloader(c Client) *Downloader {
	return &Downloader{client: c}
}

// FetchInputs downloads every recognised input table under folderPath into
// destDir and returns the local CSV paths.
//
// CSV files are copied as they are. XLSX files are converted from their first
// sheet to <table>.csv. Files whose base name is not an input table are
// ignored, and a CSV wins over an XLSX of the same table.
func (d *Downloader) FetchInputs(ctx context.Context, folderPath, destDir string) ([]string, error) {
	if destDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	folderID, err := d.client.FindFolderByPath(ctx, folderPath)
	if err != nil {
		return nil, err
	}
	files, err := d.client.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(files, func(a, b *File) int {
		// .csv sorts before .xlsx, so CSVs are seen first
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	seen := make(map[string]bool)
	var paths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		table, ext, ok := inputTable(f.Name)
		if !ok || seen[table] {
			continue
		}
		csvPath := filepath.Join(destDir, table)

		switch ext {
		case ".csv":
			if err := d.download(ctx, f, csvPath); err != nil {
				return nil, err
			}
		case ".xlsx":
			tmp := filepath.Join(destDir, f.Name)
			if err := d.download(ctx, f, tmp); err != nil {
				return nil, err
			}
			rows, err := convertXLSXToCSV(tmp, csvPath)
			_ = os.Remove(tmp)
			if err != nil {
				return nil, fmt.Errorf("failed to convert %s to csv: %w", f.Name, err)
			}
			log.Debug().Str("file", f.Name).Int("rows", rows).Msg("drive: xlsx converted")
		}

		seen[table] = true
		paths = append(paths, csvPath)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInputs, folderPath)
	}
	log.Info().Str("folder", folderPath).Int("files", len(paths)).Msg("drive: inputs downloaded")
	return paths, nil
}

func (d *Downloader) download(ctx context.Context, f *File, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", dest, err)
	}
	if err := d.client.DownloadFile(ctx, f.ID, out); err != nil {
		out.Close()
		return fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	return out.Close()
}

// inputTable maps a Drive file name to the CSV name the dataset loader reads.
func inputTable(name string) (table, ext string, ok bool) {
	ext = strings.ToLower(filepath.Ext(name))
	if ext != ".csv" && ext != ".xlsx" {
		return "", "", false
	}
	table = strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))) + ".csv"
	if !slices.Contains(dataset.InputFiles, table) {
		return "", "", false
	}
	return table, ext, true
}
