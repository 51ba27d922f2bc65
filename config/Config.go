package config

import (
	"time"

	"github.com/mohitkumar/intake/analytics"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_SQLITE StorageType = "sqlite"
const STORAGE_TYPE_INMEM StorageType = "memory"

type EncoderDecoderType string

const JSON_ENCODER_DECODER EncoderDecoderType = "JSON"

const DEFAULT_FACE_RATIO_THRESHOLD float64 = 0.15
const DEFAULT_MAX_MEDIA_BYTES int64 = 10 << 20

type Config struct {
	RedisConfig         RedisStorageConfig
	SqliteConfig        SqliteStorageConfig
	HttpPort            int
	StorageType         StorageType
	EncoderDecoderType  EncoderDecoderType
	DetectorConfig      DetectorConfig
	GateConfig          GateConfig
	DispatchConfig      DispatchConfig
	SessionHistoryLimit int
	DefinitionsDir      string
	HandleTTL           time.Duration
	ReminderConfig      ReminderConfig
	AnalyticsConfig     analytics.DataCollectorConfig
	LogLevel            string
	Development         bool
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
	Password  string
	PoolSize  int
}

type SqliteStorageConfig struct {
	Path string
}

type DetectorConfig struct {
	// Url of the remote detection service, empty when only a local detector is used.
	Url                string
	Timeout            time.Duration
	FaceRatioThreshold float64
}

type GateConfig struct {
	MaxMediaBytes int64
	NameAlphabet  string
}

type DispatchConfig struct {
	Workers        int
	PartitionCount int
	Capacity       int
}

type ReminderConfig struct {
	Enabled  bool
	Interval time.Duration
	Idle     time.Duration
}

// Defaults returns a configuration usable for local development with the
// in-memory store.
func Defaults() Config {
	return Config{
		HttpPort:           8080,
		StorageType:        STORAGE_TYPE_INMEM,
		EncoderDecoderType: JSON_ENCODER_DECODER,
		RedisConfig: RedisStorageConfig{
			Addrs:     []string{"localhost:6379"},
			Namespace: "intake",
		},
		SqliteConfig: SqliteStorageConfig{Path: "intake.db"},
		DetectorConfig: DetectorConfig{
			Timeout:            10 * time.Second,
			FaceRatioThreshold: DEFAULT_FACE_RATIO_THRESHOLD,
		},
		GateConfig: GateConfig{
			MaxMediaBytes: DEFAULT_MAX_MEDIA_BYTES,
			NameAlphabet:  "cyrillic",
		},
		DispatchConfig: DispatchConfig{
			Workers:        8,
			PartitionCount: 271,
			Capacity:       64,
		},
		SessionHistoryLimit: 50,
		HandleTTL:           30 * time.Minute,
		ReminderConfig: ReminderConfig{
			Interval: time.Minute,
			Idle:     24 * time.Hour,
		},
		LogLevel: "info",
	}
}
