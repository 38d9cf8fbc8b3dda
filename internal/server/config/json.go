package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dropgate/dropgate/internal/flagx"
	"github.com/dropgate/dropgate/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling. Interval fields use
// timex.Duration so both "10m" strings and integer nanoseconds parse.
// It is an intermediate DTO; values are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr      string         `json:"endpoint_addr"`
	DatabaseDSN       string         `json:"database_dsn"`
	SecretKey         string         `json:"secret_key"`
	S3AccessKeyID     string         `json:"s3_access_key_id"`
	S3SecretAccessKey string         `json:"s3_secret_access_key"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	S3UsePathStyle    bool           `json:"s3_use_path_style"`
	PresignTTL        timex.Duration `json:"presign_ttl"`
	StoreCallTimeout  timex.Duration `json:"store_call_timeout"`
	CleanupInterval   timex.Duration `json:"cleanup_interval"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. When no flag is given nothing
// is loaded. An unreadable or invalid file panics: a half-applied config is
// worse than no start at all.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.S3AccessKeyID = c.S3AccessKeyID
	config.S3SecretAccessKey = c.S3SecretAccessKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3UsePathStyle = c.S3UsePathStyle
	config.PresignTTL = time.Duration(c.PresignTTL.Duration)
	config.StoreCallTimeout = time.Duration(c.StoreCallTimeout.Duration)
	config.CleanupInterval = time.Duration(c.CleanupInterval.Duration)
}
