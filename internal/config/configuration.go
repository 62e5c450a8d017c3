package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"reflect"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// WebServer Configuration
	WebServerPort   int    `mapstructure:"WEBSERVER_PORT" validate:"min=1,max=65535"`
	SessionSecret   string `mapstructure:"SESSION_SECRET"`
	FrontendBaseURL string `mapstructure:"FRONTEND_BASE_URL" validate:"required,url"`
	MaxUploadSize   string `mapstructure:"MAX_UPLOAD_SIZE" validate:"required"`

	AuthRateLimitRPS   float64 `mapstructure:"AUTH_RATE_LIMIT_RPS" validate:"gt=0"`
	AuthRateLimitBurst int     `mapstructure:"AUTH_RATE_LIMIT_BURST" validate:"min=1"`

	// Database Configuration
	DatabaseDSN     string `mapstructure:"DATABASE_DSN" validate:"required"`
	DatabaseRetries int    `mapstructure:"DATABASE_RETRIES"`

	// Media layout
	MediaRoot    string `mapstructure:"MEDIA_ROOT" validate:"required"`
	MediaBaseURL string `mapstructure:"MEDIA_BASE_URL" validate:"required,url"`

	// Transcoding
	FFmpegPath        string        `mapstructure:"FFMPEG_PATH" validate:"required"`
	FFprobePath       string        `mapstructure:"FFPROBE_PATH" validate:"required"`
	TranscodeTimeout  time.Duration `mapstructure:"TRANSCODE_TIMEOUT" validate:"min=0"`
	HLSSegmentSeconds int           `mapstructure:"HLS_SEGMENT_SECONDS" validate:"min=1"`
	ThumbnailOffset   time.Duration `mapstructure:"THUMBNAIL_OFFSET" validate:"min=0"`

	// Worker tier
	TranscoderWorkers int           `mapstructure:"TRANSCODER_WORKERS" validate:"min=1"`
	JobMaxAttempts    int           `mapstructure:"JOB_MAX_ATTEMPTS" validate:"min=1"`
	JobStaleAfter     time.Duration `mapstructure:"JOB_STALE_AFTER" validate:"gt=0"`

	// Mail
	SMTPAddr     string `mapstructure:"SMTP_ADDR" validate:"omitempty,hostname_port"`
	SMTPFrom     string `mapstructure:"SMTP_FROM" validate:"omitempty,email"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
}

// MaxUploadBytes parses MaxUploadSize ("2GB", "512MiB", ...).
func (c Config) MaxUploadBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("parse MAX_UPLOAD_SIZE: %w", err)
	}
	return int64(n), nil
}

// LogValue keeps secrets out of the startup log.
func (c Config) LogValue() slog.Value {
	redact := func(s string) string {
		if s == "" {
			return ""
		}
		return "[redacted]"
	}
	return slog.GroupValue(
		slog.Int("webserver_port", c.WebServerPort),
		slog.String("database_dsn", redact(c.DatabaseDSN)),
		slog.Int("database_retries", c.DatabaseRetries),
		slog.String("media_root", c.MediaRoot),
		slog.String("media_base_url", c.MediaBaseURL),
		slog.String("ffmpeg_path", c.FFmpegPath),
		slog.Duration("transcode_timeout", c.TranscodeTimeout),
		slog.Int("transcoder_workers", c.TranscoderWorkers),
		slog.Int("job_max_attempts", c.JobMaxAttempts),
		slog.String("smtp_addr", c.SMTPAddr),
		slog.String("smtp_password", redact(c.SMTPPassword)),
		slog.String("session_secret", redact(c.SessionSecret)),
	)
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	typ := reflect.TypeOf(c)
	for i := 0; i < typ.NumField(); i++ {
		if tag := typ.Field(i).Tag.Get("mapstructure"); tag != "" {
			_ = viper.BindEnv(tag)
		}
	}
}

func setDefaults() {
	viper.SetDefault("WEBSERVER_PORT", 8000)
	viper.SetDefault("FRONTEND_BASE_URL", "http://127.0.0.1:5500")
	viper.SetDefault("MAX_UPLOAD_SIZE", "2GB")
	viper.SetDefault("AUTH_RATE_LIMIT_RPS", 1.0)
	viper.SetDefault("AUTH_RATE_LIMIT_BURST", 5)
	viper.SetDefault("DATABASE_RETRIES", 10)
	viper.SetDefault("MEDIA_ROOT", "./media")
	viper.SetDefault("MEDIA_BASE_URL", "http://127.0.0.1:8000/media")
	viper.SetDefault("FFMPEG_PATH", "ffmpeg")
	viper.SetDefault("FFPROBE_PATH", "ffprobe")
	viper.SetDefault("TRANSCODE_TIMEOUT", "0s")
	viper.SetDefault("HLS_SEGMENT_SECONDS", 4)
	viper.SetDefault("THUMBNAIL_OFFSET", "1s")
	viper.SetDefault("TRANSCODER_WORKERS", 1)
	viper.SetDefault("JOB_MAX_ATTEMPTS", 3)
	viper.SetDefault("JOB_STALE_AFTER", "2h")
	viper.SetDefault("SMTP_FROM", "info@videoflix.com")
}

func LoadConfig(ctx context.Context) (*Config, error) {
	// A missing .env is the normal case in containers.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	bindEnv(Config{})
	viper.AutomaticEnv()
	setDefaults()

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if _, err := cfg.MaxUploadBytes(); err != nil {
		return nil, err
	}

	slog.Info("Loaded configuration", "config", cfg)
	return &cfg, nil
}
