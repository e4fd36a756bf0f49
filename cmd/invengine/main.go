package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/invengine/internal/analytics"
	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/dataset"
	"github.com/andresuchdata/invengine/internal/repository/postgres"
	"github.com/andresuchdata/invengine/internal/service"
	"github.com/andresuchdata/invengine/pkg/logger"
)

const dateLayout = "2006-01-02"

func newDBFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:    "with-db",
		Usage:   "Connect to Postgres for run history and the postgres source",
		EnvVars: []string{"DB_ENABLED"},
	}
}

func main() {
	rt := &appState{}

	app := &cli.App{
		Name:  "invengine",
		Usage: "Inventory decision engine: demand shifts, non-moving stock, ABC-XYZ segments and risk scores",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			level := cfg.App.LogLevel
			if c.IsSet("log-level") {
				level = c.String("log-level")
			}
			logger.SetLevel(level)
			if cfg.Server.Mode == "release" {
				logger.UseJSON(os.Stdout)
			}
			rt.cfg = cfg
			return nil
		},
		After: func(c *cli.Context) error {
			return rt.Close()
		},
		Commands: []*cli.Command{
			analyzeCommand(rt),
			serveCommand(rt),
			migrateCommand(rt),
			seedCommand(rt),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("invengine failed")
	}
}

func analyzeCommand(rt *appState) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Run one analysis over a dataset and write the result tables",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Usage:   "Dataset source: csv, storage, postgres or drive",
				Value:   service.SourceCSV,
				EnvVars: []string{"ANALYZE_SOURCE"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory holding the input CSV files (csv source)",
				EnvVars: []string{"APP_INPUT_DIR"},
			},
			&cli.StringFlag{
				Name:    "prefix",
				Usage:   "Bucket prefix holding the input CSV files (storage source)",
				EnvVars: []string{"STORAGE_INPUT_PREFIX"},
			},
			&cli.StringFlag{
				Name:    "folder",
				Usage:   "Google Drive folder path holding the input tables (drive source)",
				EnvVars: []string{"DRIVE_FOLDER"},
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Usage:   "Directory the result tables are written to",
				EnvVars: []string{"APP_OUTPUT_DIR"},
			},
			&cli.IntFlag{
				Name:    "threshold-weeks",
				Usage:   "Non-moving threshold in weeks (12, 26 or 52)",
				EnvVars: []string{"NON_MOVING_THRESHOLD_WEEKS"},
			},
			&cli.StringFlag{
				Name:  "analysis-date",
				Usage: "Analysis date as YYYY-MM-DD (defaults to the latest week in the data)",
			},
			&cli.BoolFlag{
				Name:  "by-location",
				Usage: "Segment per item and location instead of pooling locations",
			},
			&cli.BoolFlag{
				Name:  "persist",
				Usage: "Store the run and its result tables in Postgres",
			},
			&cli.BoolFlag{
				Name:  "upload",
				Usage: "Upload the exported tables to object storage",
			},
			newDBFlag(),
		},
		Action: func(c *cli.Context) error {
			opts, err := runOptions(c.String("analysis-date"), c.Int("threshold-weeks"), c.Bool("by-location"))
			if err != nil {
				return err
			}
			source := c.String("source")
			withDB := c.Bool("with-db") || c.Bool("persist") || source == service.SourcePostgres
			if err := rt.Open(c.Context, withDB, c.String("output-dir")); err != nil {
				return err
			}

			location := c.String("data-dir")
			switch source {
			case service.SourceStorage:
				location = c.String("prefix")
			case service.SourceDrive:
				location = c.String("folder")
			}
			src, err := rt.resolveSource(source, location)
			if err != nil {
				return err
			}

			report, err := rt.service.Run(c.Context, service.RunRequest{
				Source:  src,
				Options: opts,
				Persist: c.Bool("persist"),
				Export:  true,
				Upload:  c.Bool("upload"),
			})
			if err != nil {
				return err
			}
			printSummary(report)
			return nil
		},
	}
}

func migrateCommand(rt *appState) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the input and result tables in Postgres",
		Action: func(c *cli.Context) error {
			if err := rt.Open(c.Context, true, ""); err != nil {
				return err
			}
			if err := rt.repo.EnsureSchema(c.Context); err != nil {
				return err
			}
			logger.Log.Info().Str("db", rt.cfg.Database.DBName).Msg("schema is up to date")
			return nil
		},
	}
}

func seedCommand(rt *appState) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load the input CSV files into the Postgres input tables",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory holding the input CSV files",
				EnvVars: []string{"APP_INPUT_DIR"},
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Create missing tables before seeding",
				Value: true,
			},
		},
		Action: func(c *cli.Context) error {
			dir := c.String("data-dir")
			if dir == "" {
				dir = rt.cfg.App.InputDir
			}
			tables, err := dataset.ReadCSVDir(dir)
			if err != nil {
				return err
			}

			if err := rt.Open(c.Context, true, ""); err != nil {
				return err
			}
			if c.Bool("migrate") {
				if err := rt.repo.EnsureSchema(c.Context); err != nil {
					return err
				}
			}
			counts, err := postgres.NewSeeder(rt.db).Seed(c.Context, tables)
			if err != nil {
				return fmt.Errorf("failed to seed input tables: %w", err)
			}
			for table, n := range counts {
				fmt.Printf("  %-22s %d rows\n", table, n)
			}
			return nil
		},
	}
}

func runOptions(date string, thresholdWeeks int, byLocation bool) (analytics.RunOptions, error) {
	opts := analytics.RunOptions{ThresholdWeeks: thresholdWeeks, ByLocation: byLocation}
	if date == "" {
		return opts, nil
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return opts, fmt.Errorf("analysis-date must be YYYY-MM-DD: %w", err)
	}
	opts.AnalysisDate = d
	return opts, nil
}

func printSummary(report *analytics.Report) {
	s := report.Summary
	fmt.Printf("Run %s (analysis date %s, threshold %d weeks)\n", s.RunID, s.AnalysisDate, s.ThresholdWeeks)
	fmt.Printf("  keys analysed:       %d\n", s.TotalKeys)
	fmt.Printf("  demand shifts:       %d\n", s.DemandShift.ShiftsDetected)
	fmt.Printf("  non-moving / hold:   %d / %d\n", s.NonMoving.NonMoving, s.NonMoving.OnHold)
	fmt.Printf("  critical / high:     %d / %d\n", s.Scoring.CriticalItems, s.Scoring.HighRiskItems)
	fmt.Printf("  alerts:              %d\n", s.Alerts.Total)
	fmt.Printf("  took:                %s\n", report.Duration.Round(time.Millisecond))
}
