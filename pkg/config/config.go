package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration.
// Each section is read under its own prefix (DB_HOST, REDIS_PORT, QUEUE_MAX_RETRIES).
// Fields with an explicit envconfig key, such as OPENAI_API_KEY, also fall back to the bare key.
type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	Log           LogConfig           `envconfig:"LOG"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Storage       StorageConfig       `envconfig:"STORAGE"`
	Queue         QueueConfig         `envconfig:"QUEUE"`
	Worker        WorkerConfig        `envconfig:"WORKER"`
	Transcription TranscriptionConfig `envconfig:"TRANSCRIPTION"`
	Diarization   DiarizationConfig   `envconfig:"DIARIZATION"`
	LLM           LLMConfig           `envconfig:"LLM"`
	Features      FeatureConfig       `envconfig:"FEATURES"`
}

// ServerConfig holds the operator API configuration
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	Host            string        `split_words:"true" default:"0.0.0.0"`
	Environment     string        `envconfig:"ENVIRONMENT" default:"development" validate:"oneof=development staging production test"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string `split_words:"true" default:"info" validate:"oneof=debug info warn error"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host          string `split_words:"true" default:"localhost"`
	Port          string `split_words:"true" default:"5432"`
	User          string `split_words:"true" default:"postgres"`
	Password      string `split_words:"true" default:"postgres"`
	Name          string `split_words:"true" default:"meetingmind"`
	SSLMode       string `split_words:"true" default:"disable"`
	MaxConns      int    `split_words:"true" default:"25" validate:"min=1"`
	MinConns      int    `split_words:"true" default:"5" validate:"min=0"`
	MigrationsDir string `split_words:"true"`
	AutoMigrate   bool   `split_words:"true" default:"false"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `split_words:"true" default:"localhost"`
	Port     string `split_words:"true" default:"6379"`
	Password string `split_words:"true"`
	DB       int    `split_words:"true" default:"0"`
}

// StorageConfig holds object storage and recording download configuration
type StorageConfig struct {
	Endpoint          string        `split_words:"true" default:"localhost:9000"`
	AccessKeyID       string        `split_words:"true" default:"minioadmin"`
	SecretAccessKey   string        `split_words:"true" default:"minioadmin"`
	BucketName        string        `split_words:"true" default:"recordings"`
	UseSSL            bool          `split_words:"true" default:"false"`
	RecordingMaxBytes int64         `envconfig:"RECORDING_MAX_BYTES" default:"2147483648" validate:"min=1"`
	DownloadTimeout   time.Duration `split_words:"true" default:"30m"`
}

const minVisibilityTimeout = time.Minute

// QueueConfig holds job queue configuration
type QueueConfig struct {
	Backend           string        `split_words:"true" default:"redis" validate:"oneof=redis memory"`
	Name              string        `split_words:"true" default:"pipeline" validate:"required"`
	MaxRetries        int           `split_words:"true" default:"3" validate:"min=0"`
	RetryInterval     time.Duration `split_words:"true" default:"60s"`
	VisibilityTimeout time.Duration `split_words:"true" default:"30m"`
	Retention         time.Duration `split_words:"true" default:"168h"`
}

// WorkerConfig holds job runner configuration
type WorkerConfig struct {
	Concurrency  int           `split_words:"true" default:"4" validate:"min=1"`
	PollInterval time.Duration `split_words:"true" default:"1s"`
	JobTimeout   time.Duration `split_words:"true" default:"1h"`
}

// TranscriptionConfig selects and configures the speech-to-text backend
type TranscriptionConfig struct {
	Backend          string        `split_words:"true" default:"openai" validate:"oneof=openai assemblyai local"`
	Model            string        `envconfig:"WHISPER_MODEL" default:"base" validate:"oneof=tiny base small medium large"`
	Language         string        `envconfig:"WHISPER_LANGUAGE" default:"auto"`
	Device           string        `envconfig:"WHISPER_DEVICE" default:"cpu" validate:"oneof=cpu cuda"`
	ComputeType      string        `envconfig:"WHISPER_COMPUTE_TYPE" default:"int8" validate:"oneof=int8 float16 float32"`
	OpenAIAPIKey     string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	AssemblyAIAPIKey string        `envconfig:"ASSEMBLYAI_API_KEY"`
	PythonBin        string        `envconfig:"PYTHON_BIN" default:"python3"`
	RequestTimeout   time.Duration `split_words:"true" default:"10m"`
	StreamWindow     time.Duration `split_words:"true" default:"5s"`
	StreamOverlap    time.Duration `split_words:"true" default:"1s"`
}

// DiarizationConfig configures the pyannote helper
type DiarizationConfig struct {
	HFToken   string `envconfig:"HF_TOKEN"`
	Model     string `split_words:"true" default:"pyannote/speaker-diarization-3.1"`
	PythonBin string `envconfig:"PYTHON_BIN" default:"python3"`
}

// LLMConfig selects and configures the language model backend
type LLMConfig struct {
	Provider   string        `split_words:"true" default:"openai" validate:"oneof=openai anthropic"`
	APIKey     string        `split_words:"true"`
	Model      string        `split_words:"true"`
	BaseURL    string        `split_words:"true"`
	Timeout    time.Duration `split_words:"true" default:"60s"`
	MaxRetries uint64        `split_words:"true" default:"2"`
}

// FeatureConfig holds pipeline feature flags
type FeatureConfig struct {
	NoiseCancellation bool `envconfig:"ENABLE_NOISE_CANCELLATION" default:"false"`
	KnowledgeGraph    bool `envconfig:"ENABLE_KNOWLEDGE_GRAPH" default:"true"`
	Diarization       bool `envconfig:"ENABLE_DIARIZATION" default:"true"`
}

// Load loads configuration from the environment, reading .env first when present
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration structure
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Transcription.StreamOverlap >= c.Transcription.StreamWindow {
		return fmt.Errorf("invalid configuration: STREAM_OVERLAP must be shorter than STREAM_WINDOW")
	}
	// running jobs renew their lease every half visibility timeout
	if c.Queue.VisibilityTimeout < minVisibilityTimeout {
		return fmt.Errorf("invalid configuration: QUEUE_VISIBILITY_TIMEOUT must be at least %s", minVisibilityTimeout)
	}
	return nil
}

// RequireCredentials checks that the selected backends have their API keys.
// Commands that never call a backend (migrate, enqueue) skip it.
func (c *Config) RequireCredentials() error {
	var missing []string
	switch c.Transcription.Backend {
	case "openai":
		if c.Transcription.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case "assemblyai":
		if c.Transcription.AssemblyAIAPIKey == "" {
			missing = append(missing, "ASSEMBLYAI_API_KEY")
		}
	}
	if c.LLM.APIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s is required", strings.Join(missing, ", "))
	}
	return nil
}

// IsProduction reports whether the server runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
