package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string // "postgres" (lib/pq) or "pgx"
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Schema   string
	MaxConns int
}

type AppConfig struct {
	LogLevel  string
	InputDir  string
	OutputDir string
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	SummaryTTLSecond int
}

type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	UseSSL       bool
	InputPrefix  string
	ExportPrefix string
}

type DriveConfig struct {
	Enabled         bool
	CredentialsFile string
	Folder          string
}

// Load reads configuration from the environment (and an optional .env file)
// into a fresh Config. Every call builds its own viper instance, so callers
// can load twice with different environments without sharing state.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("DB_DRIVER"),
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
			Schema:   v.GetString("POSTGRES_SCHEMA"),
			MaxConns: v.GetInt("POSTGRES_MAX_CONNS"),
		},
		App: AppConfig{
			LogLevel:  v.GetString("LOG_LEVEL"),
			InputDir:  v.GetString("APP_INPUT_DIR"),
			OutputDir: v.GetString("APP_OUTPUT_DIR"),
		},
		Cache: CacheConfig{
			Enabled:          v.GetBool("CACHE_ENABLED"),
			RedisURL:         v.GetString("REDIS_URL"),
			RedisHost:        v.GetString("REDIS_HOST"),
			RedisPort:        v.GetString("REDIS_PORT"),
			RedisPassword:    v.GetString("REDIS_PASSWORD"),
			RedisDB:          v.GetInt("REDIS_DB"),
			SummaryTTLSecond: v.GetInt("CACHE_SUMMARY_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("STORAGE_ENABLED"),
			Endpoint:     v.GetString("STORAGE_ENDPOINT"),
			AccessKey:    v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:    v.GetString("STORAGE_SECRET_KEY"),
			Bucket:       v.GetString("STORAGE_BUCKET"),
			Region:       v.GetString("STORAGE_REGION"),
			UseSSL:       v.GetBool("STORAGE_USE_SSL"),
			InputPrefix:  v.GetString("STORAGE_INPUT_PREFIX"),
			ExportPrefix: v.GetString("STORAGE_EXPORT_PREFIX"),
		},
		Drive: DriveConfig{
			Enabled:         v.GetBool("DRIVE_ENABLED"),
			CredentialsFile: v.GetString("DRIVE_CREDENTIALS_FILE"),
			Folder:          v.GetString("DRIVE_FOLDER"),
		},
		Engine: loadEngineConfig(v),
	}

	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	if err := ensureDir(cfg.App.OutputDir); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "inventory")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("POSTGRES_SCHEMA", "public")
	v.SetDefault("POSTGRES_MAX_CONNS", 25)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_INPUT_DIR", "./data/input")
	v.SetDefault("APP_OUTPUT_DIR", "./data/output")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_SUMMARY_TTL_SECONDS", 3600)

	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("STORAGE_INPUT_PREFIX", "input/")
	v.SetDefault("STORAGE_EXPORT_PREFIX", "exports/")

	v.SetDefault("DRIVE_ENABLED", false)
	v.SetDefault("DRIVE_FOLDER", "")

	d := DefaultEngineConfig()
	v.SetDefault("DEMAND_CUSUM_THRESHOLD", d.DemandShift.CUSUMThreshold)
	v.SetDefault("DEMAND_MA_SHORT_WINDOW", d.DemandShift.MAShortWindow)
	v.SetDefault("DEMAND_MA_LONG_WINDOW", d.DemandShift.MALongWindow)
	v.SetDefault("DEMAND_ZSCORE_THRESHOLD", d.DemandShift.ZScoreThreshold)
	v.SetDefault("DEMAND_MIN_DATA_POINTS", d.DemandShift.MinDataPoints)
	v.SetDefault("NON_MOVING_THRESHOLD_WEEKS", d.NonMoving.ThresholdWeeks)
	v.SetDefault("NON_MOVING_FORECAST_WEEKS_AHEAD", d.NonMoving.ForecastWeeksAhead)
	v.SetDefault("SEGMENT_ABC_A_PERCENTILE", d.Segmentation.ABCAPercentile)
	v.SetDefault("SEGMENT_ABC_B_PERCENTILE", d.Segmentation.ABCBPercentile)
	v.SetDefault("SEGMENT_XYZ_X_CV", d.Segmentation.XYZXCV)
	v.SetDefault("SEGMENT_XYZ_Y_CV", d.Segmentation.XYZYCV)
	v.SetDefault("SCORING_WEIGHT_DEMAND_SHIFT", d.Scoring.Weights.DemandShift)
	v.SetDefault("SCORING_WEIGHT_NON_MOVING", d.Scoring.Weights.NonMoving)
	v.SetDefault("SCORING_WEIGHT_SHELF_LIFE", d.Scoring.Weights.ShelfLife)
	v.SetDefault("SCORING_WEIGHT_LIFECYCLE", d.Scoring.Weights.Lifecycle)
	v.SetDefault("SCORING_WEIGHT_INVENTORY", d.Scoring.Weights.Inventory)
	v.SetDefault("SCORING_MAX_WEEKS_OF_SUPPLY", d.Scoring.MaxWeeksOfSupply)
	v.SetDefault("ENGINE_WORKERS", runtime.NumCPU())
}

func loadEngineConfig(v *viper.Viper) EngineConfig {
	cfg := DefaultEngineConfig()

	cfg.DemandShift = DemandShiftConfig{
		CUSUMThreshold:  v.GetFloat64("DEMAND_CUSUM_THRESHOLD"),
		MAShortWindow:   v.GetInt("DEMAND_MA_SHORT_WINDOW"),
		MALongWindow:    v.GetInt("DEMAND_MA_LONG_WINDOW"),
		ZScoreThreshold: v.GetFloat64("DEMAND_ZSCORE_THRESHOLD"),
		MinDataPoints:   v.GetInt("DEMAND_MIN_DATA_POINTS"),
	}
	cfg.NonMoving.ThresholdWeeks = v.GetInt("NON_MOVING_THRESHOLD_WEEKS")
	cfg.NonMoving.ForecastWeeksAhead = v.GetInt("NON_MOVING_FORECAST_WEEKS_AHEAD")
	cfg.Segmentation = SegmentationConfig{
		ABCAPercentile: v.GetFloat64("SEGMENT_ABC_A_PERCENTILE"),
		ABCBPercentile: v.GetFloat64("SEGMENT_ABC_B_PERCENTILE"),
		XYZXCV:         v.GetFloat64("SEGMENT_XYZ_X_CV"),
		XYZYCV:         v.GetFloat64("SEGMENT_XYZ_Y_CV"),
	}
	cfg.Scoring = ScoringConfig{
		Weights: ScoringWeights{
			DemandShift: v.GetFloat64("SCORING_WEIGHT_DEMAND_SHIFT"),
			NonMoving:   v.GetFloat64("SCORING_WEIGHT_NON_MOVING"),
			ShelfLife:   v.GetFloat64("SCORING_WEIGHT_SHELF_LIFE"),
			Lifecycle:   v.GetFloat64("SCORING_WEIGHT_LIFECYCLE"),
			Inventory:   v.GetFloat64("SCORING_WEIGHT_INVENTORY"),
		},
		MaxWeeksOfSupply: v.GetFloat64("SCORING_MAX_WEEKS_OF_SUPPLY"),
	}
	cfg.Workers = v.GetInt("ENGINE_WORKERS")

	return cfg
}

// DSN builds a libpq-style connection string; both lib/pq and pgx accept it.
func (c DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	if c.Schema != "" && c.Schema != "public" {
		dsn += " search_path=" + c.Schema
	}
	return dsn
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
