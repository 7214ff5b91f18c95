package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	StorageLocal = "local"
	StorageGCS   = "gcs"

	DetectorDNN    = "dnn"
	DetectorGemini = "gemini"
	DetectorNone   = "none"
)

// Config holds every runtime setting of the application. Zero values are
// replaced by defaults in Load.
type Config struct {
	Port      int    `json:"port" yaml:"port" toml:"port"`
	AppURL    string `json:"app_url" yaml:"app_url" toml:"app_url"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	DBDriver    string `json:"db_driver" yaml:"db_driver" toml:"db_driver"`
	DatabaseURL string `json:"database_url" yaml:"database_url" toml:"database_url"`

	StorageBackend string `json:"storage_backend" yaml:"storage_backend" toml:"storage_backend"`
	UploadFolder   string `json:"upload_folder" yaml:"upload_folder" toml:"upload_folder"`
	GCSProjectID   string `json:"gcs_project_id" yaml:"gcs_project_id" toml:"gcs_project_id"`
	GCSBucketName  string `json:"gcs_bucket_name" yaml:"gcs_bucket_name" toml:"gcs_bucket_name"`
	GCSCredentials string `json:"gcs_credentials" yaml:"gcs_credentials" toml:"gcs_credentials"`

	JWTSecret   string `json:"jwt_secret" yaml:"jwt_secret" toml:"jwt_secret"`
	CSRFEnabled bool   `json:"csrf_enabled" yaml:"csrf_enabled" toml:"csrf_enabled"`

	DetectorBackend string  `json:"detector_backend" yaml:"detector_backend" toml:"detector_backend"`
	ModelPath       string  `json:"model_path" yaml:"model_path" toml:"model_path"`
	ModelConfigPath string  `json:"model_config_path" yaml:"model_config_path" toml:"model_config_path"`
	ScoreThreshold  float64 `json:"score_threshold" yaml:"score_threshold" toml:"score_threshold"`
	GeminiAPIKey    string  `json:"gemini_api_key" yaml:"gemini_api_key" toml:"gemini_api_key"`
	GeminiModel     string  `json:"gemini_model" yaml:"gemini_model" toml:"gemini_model"`

	Mail MailConfig `json:"mail" yaml:"mail" toml:"mail"`
}

// MailConfig mirrors the MAIL_* variables of the contact form.
type MailConfig struct {
	Server        string `json:"server" yaml:"server" toml:"server"`
	Port          int    `json:"port" yaml:"port" toml:"port"`
	UseTLS        bool   `json:"use_tls" yaml:"use_tls" toml:"use_tls"`
	Username      string `json:"username" yaml:"username" toml:"username"`
	Password      string `json:"password" yaml:"password" toml:"password"`
	DefaultSender string `json:"default_sender" yaml:"default_sender" toml:"default_sender"`
}

// Load builds the configuration. Values come from the optional config file
// first, then from the environment (a .env file is loaded when present),
// then from defaults.
func Load(path string) (*Config, error) {
	// a missing .env is fine outside of development
	_ = godotenv.Load()

	// CSRF checks stay on unless the file or environment turns them off.
	cfg := &Config{CSRFEnabled: true}
	if path == "" {
		path = os.Getenv("SNAP_CONFIG")
	}
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a yaml, json or toml file into cfg based on its extension.
func LoadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	case ".json":
		return json.Unmarshal(b, cfg)
	case ".toml":
		return toml.Unmarshal(b, cfg)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
}

// Validate reports settings that would make the server unusable.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL not set")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.StorageBackend {
	case StorageLocal:
	case StorageGCS:
		if c.GCSBucketName == "" {
			return fmt.Errorf("GCS_BUCKET_NAME not set")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.DetectorBackend {
	case DetectorDNN, DetectorNone:
	case DetectorGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY not set")
		}
	default:
		return fmt.Errorf("unsupported DETECTOR_BACKEND %q", c.DetectorBackend)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	return nil
}

func applyEnv(c *Config) {
	setInt(&c.Port, "PORT")
	setString(&c.AppURL, "APP_URL")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")

	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DatabaseURL, "DATABASE_URL")

	setString(&c.StorageBackend, "STORAGE_BACKEND")
	setString(&c.UploadFolder, "UPLOAD_FOLDER")
	setString(&c.GCSProjectID, "GCS_PROJECT_ID")
	setString(&c.GCSBucketName, "GCS_BUCKET_NAME")
	setString(&c.GCSCredentials, "GOOGLE_APPLICATION_CREDENTIALS")

	setString(&c.JWTSecret, "JWT_SECRET")
	setBool(&c.CSRFEnabled, "CSRF_ENABLED")

	setString(&c.DetectorBackend, "DETECTOR_BACKEND")
	setString(&c.ModelPath, "MODEL_PATH")
	setString(&c.ModelConfigPath, "MODEL_CONFIG_PATH")
	setFloat(&c.ScoreThreshold, "SCORE_THRESHOLD")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")

	setString(&c.Mail.Server, "MAIL_SERVER")
	setInt(&c.Mail.Port, "MAIL_PORT")
	setBool(&c.Mail.UseTLS, "MAIL_USE_TLS")
	setString(&c.Mail.Username, "MAIL_USERNAME")
	setString(&c.Mail.Password, "MAIL_PASSWORD")
	setString(&c.Mail.DefaultSender, "MAIL_DEFAULT_SENDER")
}

func applyDefaults(c *Config) {
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.AppURL == "" {
		c.AppURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.DBDriver == "" {
		c.DBDriver = DriverSQLite
	}
	if c.DBDriver == DriverSQLite && c.DatabaseURL == "" {
		c.DatabaseURL = filepath.Join("data", "snap-detect.db")
	}
	if c.StorageBackend == "" {
		c.StorageBackend = StorageLocal
	}
	if c.UploadFolder == "" {
		c.UploadFolder = filepath.Join("data", "images")
	}
	if c.DetectorBackend == "" {
		c.DetectorBackend = DetectorDNN
	}
	if c.ModelPath == "" {
		c.ModelPath = filepath.Join("data", "model", "frozen_inference_graph.pb")
	}
	if c.ModelConfigPath == "" {
		c.ModelConfigPath = filepath.Join("data", "model", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")
	}
	if c.ScoreThreshold == 0 {
		c.ScoreThreshold = 0.5
	}
	if c.GeminiModel == "" {
		c.GeminiModel = "gemini-2.5-flash"
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.DefaultSender == "" {
		c.Mail.DefaultSender = "noreply@localhost"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
