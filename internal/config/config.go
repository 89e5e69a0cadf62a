package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Engagement EngagementConfig `mapstructure:"engagement"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"` // development, staging, production
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // mongo or memory
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
	// InitTimeout bounds connecting and index creation at startup only.
	InitTimeout time.Duration `mapstructure:"init_timeout"`
}

// StorageConfig selects and configures the object store backend.
type StorageConfig struct {
	Driver        string        `mapstructure:"driver"` // s3, gcs or local
	CapabilityTTL time.Duration `mapstructure:"capability_ttl"`
	PutTimeout    time.Duration `mapstructure:"put_timeout"`
	S3            S3Config      `mapstructure:"s3"`
	GCS           GCSConfig     `mapstructure:"gcs"`
	Local         LocalConfig   `mapstructure:"local"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"` // optional; ADC when empty
	AccessID        string `mapstructure:"access_id"`        // service account email used to sign URLs
	PrivateKeyFile  string `mapstructure:"private_key_file"` // PEM key used to sign URLs
}

type LocalConfig struct {
	BaseDir       string `mapstructure:"base_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	SigningKey    string `mapstructure:"signing_key"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// EngagementConfig bounds the optimistic-concurrency retry loop used for
// comments and ratings.
type EngagementConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Deadline    time.Duration `mapstructure:"deadline"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, storage.s3.bucket_name -> STORAGE_S3_BUCKET_NAME
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil // env vars and defaults are enough
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, config.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "video-catalog")
	v.SetDefault("app.env", "development")
	v.SetDefault("server.address", ":4000")
	v.SetDefault("server.max_upload_bytes", 200<<20)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "videoShareDb")
	v.SetDefault("database.init_timeout", "10s")
	v.SetDefault("storage.driver", "s3")
	v.SetDefault("storage.capability_ttl", "24h")
	v.SetDefault("storage.put_timeout", "15m")
	v.SetDefault("storage.s3.bucket_name", "videos")
	v.SetDefault("storage.s3.use_path_style", true)
	v.SetDefault("storage.local.base_dir", "./data/media")
	v.SetDefault("storage.local.public_base_url", "http://localhost:4000")
	v.SetDefault("jwt.expiration", "168h")
	v.SetDefault("engagement.max_attempts", 5)
	v.SetDefault("engagement.deadline", "5s")

	// Keys without defaults still need binding so AutomaticEnv sees them on Unmarshal.
	for _, key := range []string{
		"storage.s3.endpoint", "storage.s3.region", "storage.s3.access_key_id", "storage.s3.secret_access_key",
		"storage.gcs.bucket", "storage.gcs.credentials_file", "storage.gcs.access_id", "storage.gcs.private_key_file",
		"storage.local.signing_key", "jwt.secret",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate fails fast on settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	switch c.Database.Driver {
	case "mongo":
		if c.Database.URI == "" || c.Database.Name == "" {
			errs = append(errs, errors.New("database.uri and database.name are required for the mongo driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	switch c.Storage.Driver {
	case "s3", "gcs", "local":
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Engagement.MaxAttempts <= 0 {
		errs = append(errs, errors.New("engagement.max_attempts must be positive"))
	}
	return errors.Join(errs...)
}
