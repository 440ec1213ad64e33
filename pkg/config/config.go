// Package config loads papermaked's process configuration with viper, the
// same way the teacher's cmd/datamon/cmd package builds its CLIConfig:
// defaults set on the global viper instance, overridable by a config file
// and then by environment variables, unmarshaled into a typed struct.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is papermaked's process configuration.
type Config struct {
	// StorageBackend selects the BlobStore implementation: "localfs",
	// "s3", or "gcs".
	StorageBackend string `json:"storage_backend" yaml:"storage_backend" mapstructure:"storage_backend"`
	// StorageRoot is the localfs root directory, or the bucket name for
	// s3/gcs.
	StorageRoot string `json:"storage_root" yaml:"storage_root" mapstructure:"storage_root"`
	// GCSCredential is a path to a GCS service account key file; ignored
	// for other backends.
	GCSCredential string `json:"gcs_credential" yaml:"gcs_credential" mapstructure:"gcs_credential"`
	// AWSRegion configures the S3 client; ignored for other backends.
	AWSRegion string `json:"aws_region" yaml:"aws_region" mapstructure:"aws_region"`

	// LogLevel is one of dlogger's log levels: "info", "debug", "none".
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	// ManifestCacheSize bounds the manifest LRU cache.
	ManifestCacheSize int `json:"manifest_cache_size" yaml:"manifest_cache_size" mapstructure:"manifest_cache_size"`
	// WarmedCacheSize bounds the warmed-state LRU cache.
	WarmedCacheSize int `json:"warmed_cache_size" yaml:"warmed_cache_size" mapstructure:"warmed_cache_size"`
	// MutableTagTTLSeconds is loaded but not read by any component: the
	// tag cache always uses cache.MutableTagTTL (5s).
	MutableTagTTLSeconds int `json:"mutable_tag_ttl_seconds" yaml:"mutable_tag_ttl_seconds" mapstructure:"mutable_tag_ttl_seconds"`

	// AdmissionLimit caps concurrent compilations; 0 disables the limit.
	AdmissionLimit int64 `json:"admission_limit" yaml:"admission_limit" mapstructure:"admission_limit"`

	// RecordSinkQueueSize is loaded but not read by any component:
	// cmd/papermaked's logging sink uses recordsink.DefaultQueueSize.
	RecordSinkQueueSize int `json:"record_sink_queue_size" yaml:"record_sink_queue_size" mapstructure:"record_sink_queue_size"`
	// RecordSinkBackend is loaded but not read by any component:
	// cmd/papermaked always writes render records through the logging
	// sink ("log"), and no other record writer exists.
	RecordSinkBackend string `json:"record_sink_backend" yaml:"record_sink_backend" mapstructure:"record_sink_backend"`
}

const envPrefix = "PAPERMAKE"

func setDefaults() {
	viper.SetDefault("storage_backend", "localfs")
	viper.SetDefault("storage_root", "./data")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("manifest_cache_size", 1024)
	viper.SetDefault("warmed_cache_size", 64)
	viper.SetDefault("mutable_tag_ttl_seconds", 5)
	viper.SetDefault("admission_limit", 0)
	viper.SetDefault("record_sink_queue_size", 1024)
	viper.SetDefault("record_sink_backend", "log")
}

// Load reads papermaked's configuration the way the teacher's initConfig
// does: defaults, then an optional config file (PAPERMAKE_CONFIG, or the
// first of ./papermake.yaml, $HOME/.papermake/papermake.yaml,
// /etc/papermake/papermake.yaml that exists), then environment variables
// prefixed PAPERMAKE_, unmarshaled into a Config.
func Load() (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.papermake")
		viper.AddConfigPath("/etc/papermake")
		viper.SetConfigName("papermake")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
