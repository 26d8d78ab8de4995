package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderChatGPT = "CHATGPT"
	ProviderGemini  = "GEMINI"

	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// LLM provider selection
	LLMProvider           string
	ChatGPTAPIKey         string
	ChatGPTModel          string
	ChatGPTBaseURL        string
	ChatGPTEmbeddingModel string
	GeminiAPIKey          string
	GeminiModel           string
	GeminiEmbeddingModel  string
	LLMTemperature        float64
	LLMRequestsPerMinute  int
	LLMTimeout            time.Duration

	// Elasticsearch
	ElasticHost     string
	ElasticPort     string
	ElasticUser     string
	ElasticPassword string
	ElasticIndex    string
	SearchTimeout   time.Duration

	// Retrieval and answer pipeline
	VectorWeight    float64
	RetrievalK      int
	StreamK         int
	MaxTokenLimit   int
	ChunkDelay      time.Duration
	PipelineTimeout time.Duration

	// Slack
	SlackSigningSecret string
	SlackBotToken      string
	SlackAPIURL        string

	// Event dispatch
	QueueBackend string
	WorkerCount  int
	QueueSize    int

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	RateLimitReqs   int
	RateLimitWindow int

	// Answer audit log (optional)
	MongoURI string
	DBName   string

	// Telemetry
	OTelEnabled  bool
	OTelEndpoint string

	AskAPIEnabled       bool
	HealthProbeInterval time.Duration
}

// ElasticAddress joins host and port into the URL handed to the search client.
func (c *Config) ElasticAddress() string {
	host := strings.TrimRight(c.ElasticHost, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	if c.ElasticPort == "" || strings.Count(host, ":") > 1 {
		return host
	}
	return host + ":" + c.ElasticPort
}

func LoadConfig() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "release"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "*"), ","),

		LLMProvider:           strings.ToUpper(getEnv("LLM", "")),
		ChatGPTAPIKey:         getEnv("CHATGPT_API_KEY", ""),
		ChatGPTModel:          getEnv("CHATGPT_MODEL", "gpt-4"),
		ChatGPTBaseURL:        getEnv("CHATGPT_BASE_URL", "https://api.openai.com/v1"),
		ChatGPTEmbeddingModel: getEnv("CHATGPT_EMBEDDING_MODEL", "text-embedding-ada-002"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiEmbeddingModel:  getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		LLMTemperature:        getEnvFloat64("LLM_TEMPERATURE", 0.7),
		LLMRequestsPerMinute:  getEnvInt("LLM_RPM", 60),
		LLMTimeout:            getEnvDuration("LLM_TIMEOUT", 2*time.Minute),

		ElasticHost:     getEnv("ELASTIC_HOST", ""),
		ElasticPort:     getEnv("ELASTIC_PORT", ""),
		ElasticUser:     getEnv("ELASTIC_USER", ""),
		ElasticPassword: getEnv("ELASTIC_PASSWORD", ""),
		ElasticIndex:    getEnv("ELASTIC_INDEX", "aitrics"),
		SearchTimeout:   getEnvDuration("SEARCH_TIMEOUT", 15*time.Second),

		VectorWeight:    getEnvFloat64("VECTOR_WEIGHT", 0.5),
		RetrievalK:      getEnvInt("RETRIEVAL_K", 10),
		StreamK:         getEnvInt("STREAM_K", 5),
		MaxTokenLimit:   getEnvInt("MAX_TOKEN_LIMIT", 4000),
		ChunkDelay:      getEnvDuration("CHUNK_DELAY", 2*time.Second),
		PipelineTimeout: getEnvDuration("PIPELINE_TIMEOUT", 10*time.Minute),

		SlackSigningSecret: getEnv("SLACK_SIGNING_SECRET", ""),
		SlackBotToken:      getEnv("SLACK_BOT_TOKEN", ""),
		SlackAPIURL:        getEnv("SLACK_API_URL", ""),

		QueueBackend: strings.ToLower(getEnv("QUEUE_BACKEND", QueueBackendMemory)),
		WorkerCount:  getEnvInt("WORKER_COUNT", 4),
		QueueSize:    getEnvInt("QUEUE_SIZE", 64),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		MongoURI: getEnv("MONGO_URI", ""),
		DBName:   getEnv("DB_NAME", "docs_answer_bot"),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_ENDPOINT", "localhost:4317"),

		AskAPIEnabled:       getEnvBool("ASK_API_ENABLED", false),
		HealthProbeInterval: getEnvDuration("HEALTH_PROBE_INTERVAL", time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	required := []struct {
		key, value string
	}{
		{"LLM", c.LLMProvider},
		{"ELASTIC_HOST", c.ElasticHost},
		{"ELASTIC_PORT", c.ElasticPort},
		{"ELASTIC_USER", c.ElasticUser},
		{"ELASTIC_PASSWORD", c.ElasticPassword},
		{"SLACK_SIGNING_SECRET", c.SlackSigningSecret},
		{"SLACK_BOT_TOKEN", c.SlackBotToken},
	}
	switch c.LLMProvider {
	case ProviderChatGPT:
		required = append(required, struct{ key, value string }{"CHATGPT_API_KEY", c.ChatGPTAPIKey})
	case ProviderGemini:
		required = append(required, struct{ key, value string }{"GEMINI_API_KEY", c.GeminiAPIKey})
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return &Error{Missing: missing}
	}

	if c.LLMProvider != ProviderChatGPT && c.LLMProvider != ProviderGemini {
		return &Error{Invalid: fmt.Sprintf("unsupported LLM type: %s", c.LLMProvider)}
	}
	if c.VectorWeight < 0 || c.VectorWeight > 1 {
		return &Error{Invalid: fmt.Sprintf("VECTOR_WEIGHT must be within [0,1], got %v", c.VectorWeight)}
	}
	if c.QueueBackend != QueueBackendMemory && c.QueueBackend != QueueBackendRedis {
		return &Error{Invalid: fmt.Sprintf("unsupported QUEUE_BACKEND: %s", c.QueueBackend)}
	}
	if c.QueueBackend == QueueBackendRedis && c.RedisURL == "" {
		return &Error{Missing: []string{"REDIS_URL"}}
	}
	return nil
}

// Error is returned when the process cannot start with the given environment.
type Error struct {
	Missing []string
	Invalid string
}

func (e *Error) Error() string {
	if len(e.Missing) > 0 {
		return "missing required environment variables: " + strings.Join(e.Missing, ", ")
	}
	return "invalid configuration: " + e.Invalid
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
