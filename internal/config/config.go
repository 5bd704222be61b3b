// ABOUTME: Configuration management for maillog runs
// ABOUTME: Reads the JSON config file and MAILLOG_* / credential environment variables with cleanenv

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/harper/maillog/internal/db"
	"github.com/harper/maillog/internal/imagehost"
	"github.com/harper/maillog/internal/storage"
)

// Config stores maillog configuration.
type Config struct {
	// AllowedFrom is the one sender address whose mail is treated as commands.
	AllowedFrom string `json:"allowed_from" env:"MAILLOG_ALLOWED_FROM"`

	EntriesPath string `json:"entries_path" env:"MAILLOG_ENTRIES_PATH" env-default:"data/entries.json"`
	TokenPath   string `json:"token_path" env:"MAILLOG_TOKEN_PATH" env-default:"token.json"`

	// LabelFilter is appended to the unread query, e.g. "label:journal".
	LabelFilter    string `json:"label_filter,omitempty" env:"MAILLOG_LABEL_FILTER"`
	ProcessedLabel string `json:"processed_label" env:"MAILLOG_PROCESSED_LABEL" env-default:"processed-email-log"`
	MaxMessages    int64  `json:"max_messages" env:"MAILLOG_MAX_MESSAGES" env-default:"25"`

	// MailSource is "gmail" or "maildir".
	MailSource  string `json:"mail_source" env:"MAILLOG_MAIL_SOURCE" env-default:"gmail"`
	MaildirPath string `json:"maildir_path,omitempty" env:"MAILLOG_MAILDIR_PATH"`

	// ImageHost is "cloudinary", "minio" or "none".
	ImageHost   string `json:"image_host" env:"MAILLOG_IMAGE_HOST" env-default:"cloudinary"`
	ImageFolder string `json:"image_folder" env:"MAILLOG_IMAGE_FOLDER" env-default:"email-log"`

	// TextFormat is "text" or "markdown".
	TextFormat string `json:"text_format" env:"MAILLOG_TEXT_FORMAT" env-default:"text"`

	// JournalPath defaults to the XDG data directory. "-" disables the journal.
	JournalPath string `json:"journal_path,omitempty" env:"MAILLOG_JOURNAL_PATH"`
	MetricsFile string `json:"metrics_file,omitempty" env:"MAILLOG_METRICS_FILE"`

	// Credentials are only ever read from the environment.
	Cloudinary CloudinaryCredentials `json:"-"`
	MinIO      MinIOCredentials      `json:"-"`
}

// CloudinaryCredentials are read from CLOUDINARY_* variables.
type CloudinaryCredentials struct {
	CloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	APIKey    string `env:"CLOUDINARY_API_KEY"`
	APISecret string `env:"CLOUDINARY_API_SECRET"`
}

// MinIOCredentials are read from MINIO_* variables.
type MinIOCredentials struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET"`
	PublicURL string `env:"MINIO_PUBLIC_URL"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"true"`
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "maillog", "config.json")
}

// Load reads config from path, or from GetConfigPath when path is empty.
// Environment variables override file values. A missing default file is not
// an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	var cfg Config

	explicit := path != ""
	if !explicit {
		path = GetConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	return &Config{
		EntriesPath:    DefaultEntriesPath,
		TokenPath:      DefaultTokenPath,
		ProcessedLabel: DefaultProcessedLabel,
		MaxMessages:    DefaultMaxMessages,
		MailSource:     SourceGmail,
		ImageHost:      HostCloudinary,
		ImageFolder:    DefaultImageFolder,
		TextFormat:     FormatText,
		MinIO:          MinIOCredentials{UseSSL: true},
	}
}

// Save writes config to path as indented JSON.
func (c *Config) Save(path string) error {
	if path == "" {
		path = GetConfigPath()
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return storage.AtomicWrite(path, append(data, '\n'))
}

// Validate checks the settings an ingestion run depends on.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.AllowedFrom) == "" {
		errs = append(errs, errors.New("allowed_from is required"))
	}
	if c.EntriesPath == "" {
		errs = append(errs, errors.New("entries_path is required"))
	}
	if c.MaxMessages <= 0 {
		errs = append(errs, fmt.Errorf("max_messages must be positive, got %d", c.MaxMessages))
	}

	switch c.MailSource {
	case SourceGmail:
		if c.TokenPath == "" {
			errs = append(errs, errors.New("token_path is required for the gmail source"))
		}
	case SourceMaildir:
		if c.MaildirPath == "" {
			errs = append(errs, errors.New("maildir_path is required for the maildir source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail_source: %q", c.MailSource))
	}

	switch c.ImageHost {
	case HostCloudinary:
		cl := c.Cloudinary
		if cl.CloudName == "" || cl.APIKey == "" || cl.APISecret == "" {
			errs = append(errs, errors.New("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET must be set"))
		}
	case HostMinIO:
		m := c.MinIO
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET must be set"))
		}
	case HostNone:
	default:
		errs = append(errs, fmt.Errorf("unknown image_host: %q", c.ImageHost))
	}

	switch c.TextFormat {
	case FormatText, FormatMarkdown:
	default:
		errs = append(errs, fmt.Errorf("unknown text_format: %q", c.TextFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ImageHostConfig returns the adapter settings for imagehost.New.
func (c *Config) ImageHostConfig() imagehost.Config {
	return imagehost.Config{
		Provider: c.ImageHost,
		Cloudinary: imagehost.CloudinaryConfig{
			CloudName: c.Cloudinary.CloudName,
			APIKey:    c.Cloudinary.APIKey,
			APISecret: c.Cloudinary.APISecret,
		},
		MinIO: imagehost.MinIOConfig{
			Endpoint:  c.MinIO.Endpoint,
			AccessKey: c.MinIO.AccessKey,
			SecretKey: c.MinIO.SecretKey,
			Bucket:    c.MinIO.Bucket,
			PublicURL: c.MinIO.PublicURL,
			UseSSL:    c.MinIO.UseSSL,
		},
	}
}

// GetJournalPath returns the journal database path, or "" when disabled.
func (c *Config) GetJournalPath() string {
	switch c.JournalPath {
	case "-":
		return ""
	case "":
		return db.GetDefaultJournalPath()
	default:
		return ExpandPath(c.JournalPath)
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
