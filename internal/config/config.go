// Package config centralizes how the intake service reads environment
// variables and exposes them as strongly typed values. The struct is built
// once at startup and passed by reference; nothing reads the environment
// after Load returns.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents runtime configuration for the service.
type Config struct {
	ListenAddr string
	Storage    StorageConfig
	Mail       MailConfig
	Image      ImageConfig
	Upload     UploadConfig
}

// StorageConfig configures the S3-compatible object store.
type StorageConfig struct {
	Endpoint   string
	Region     string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PresignTTL time.Duration
	OpTimeout  time.Duration
}

// MailConfig configures the SMTP transport and the fixed notification route.
type MailConfig struct {
	Host      string
	Port      int
	Secure    bool
	Username  string
	Password  string
	From      string
	Recipient string
	Timeout   time.Duration
}

// ImageConfig bounds the normalizer output.
type ImageConfig struct {
	MaxDimension    int
	Quality         int
	FallbackQuality int
	MaxEncodedBytes int64
}

// UploadConfig bounds the multipart form itself.
type UploadConfig struct {
	MaxPhotos    int
	MaxPhotoSize int64
}

const (
	defaultPresignTTL   = 24 * time.Hour
	defaultOpTimeout    = 30 * time.Second
	defaultMaxPhotoSize = 15 << 20 // 15 MiB
	defaultMaxEncoded   = 2 << 20  // 2 MiB
)

// Load reads configuration from environment variables falling back to
// defaults, then validates that the storage and mail sections are complete.
// Running without a configured object store or mail route is a startup
// failure, not a degraded mode.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("S3_PRESIGN_TTL", defaultPresignTTL)
	v.SetDefault("S3_OP_TIMEOUT", defaultOpTimeout)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_SECURE", true)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "")
	v.SetDefault("MAIL_RECIPIENT", "")
	v.SetDefault("MAIL_TIMEOUT", defaultOpTimeout)
	v.SetDefault("IMAGE_MAX_DIMENSION", 800)
	v.SetDefault("IMAGE_QUALITY", 62)
	v.SetDefault("IMAGE_FALLBACK_QUALITY", 45)
	v.SetDefault("IMAGE_MAX_ENCODED_BYTES", defaultMaxEncoded)
	v.SetDefault("MAX_PHOTOS", 5)
	v.SetDefault("MAX_PHOTO_BYTES", defaultMaxPhotoSize)
	v.AutomaticEnv()

	cfg := &Config{
		ListenAddr: v.GetString("LISTEN_ADDR"),
		Storage: StorageConfig{
			Endpoint:   v.GetString("S3_ENDPOINT"),
			Region:     v.GetString("S3_REGION"),
			AccessKey:  v.GetString("S3_ACCESS_KEY"),
			SecretKey:  v.GetString("S3_SECRET_KEY"),
			Bucket:     v.GetString("S3_BUCKET"),
			UseSSL:     v.GetBool("S3_USE_SSL"),
			PresignTTL: v.GetDuration("S3_PRESIGN_TTL"),
			OpTimeout:  v.GetDuration("S3_OP_TIMEOUT"),
		},
		Mail: MailConfig{
			Host:      v.GetString("SMTP_HOST"),
			Port:      v.GetInt("SMTP_PORT"),
			Secure:    v.GetBool("SMTP_SECURE"),
			Username:  v.GetString("SMTP_USERNAME"),
			Password:  v.GetString("SMTP_PASSWORD"),
			From:      v.GetString("MAIL_FROM"),
			Recipient: v.GetString("MAIL_RECIPIENT"),
			Timeout:   v.GetDuration("MAIL_TIMEOUT"),
		},
		Image: ImageConfig{
			MaxDimension:    v.GetInt("IMAGE_MAX_DIMENSION"),
			Quality:         v.GetInt("IMAGE_QUALITY"),
			FallbackQuality: v.GetInt("IMAGE_FALLBACK_QUALITY"),
			MaxEncodedBytes: v.GetInt64("IMAGE_MAX_ENCODED_BYTES"),
		},
		Upload: UploadConfig{
			MaxPhotos:    v.GetInt("MAX_PHOTOS"),
			MaxPhotoSize: v.GetInt64("MAX_PHOTO_BYTES"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Storage.Endpoint == "" {
		missing = append(missing, "S3_ENDPOINT")
	}
	if c.Storage.Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if c.Mail.Host == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if c.Mail.From == "" {
		missing = append(missing, "MAIL_FROM")
	}
	if c.Mail.Recipient == "" {
		missing = append(missing, "MAIL_RECIPIENT")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	if c.Image.MaxDimension <= 0 {
		c.Image.MaxDimension = 800
	}
	if c.Image.Quality <= 0 || c.Image.Quality > 100 {
		c.Image.Quality = 62
	}
	if c.Image.FallbackQuality <= 0 || c.Image.FallbackQuality > 100 {
		c.Image.FallbackQuality = 45
	}
	if c.Upload.MaxPhotos <= 0 {
		c.Upload.MaxPhotos = 5
	}
	if c.Upload.MaxPhotoSize <= 0 {
		c.Upload.MaxPhotoSize = defaultMaxPhotoSize
	}
	return nil
}
