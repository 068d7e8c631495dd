package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Engine   EngineConfig
	Offers   OffersConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Enabled       bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type JWTConfig struct {
	SecretKey string
}

// EngineConfig tunes the recommendation engine. Everything here has a safe
// default so the engine can run from an empty environment in tests.
type EngineConfig struct {
	TopK          int           // size of the final ranked list
	CandidateCap  int           // max candidates scored per request
	CacheTTL      time.Duration // result cache freshness window
	TrainInterval time.Duration // background model rebuild period
	DiversityCap  float64       // max fraction of top-k from one category
}

type OffersConfig struct {
	MaxPercent     float64       // MAX_OFFER_PCT: hard cap on any personalized discount
	ScoreThreshold float64       // minimum blended score to earn an offer
	TTL            time.Duration // offer validity window
	PerUser        int           // target number of live offers per user
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Shopsense Engine"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "shopsense"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:       getEnv("REDIS_ENABLED", "false") == "true",
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
		},
		Engine: EngineConfig{
			TopK:          getEnvInt("ENGINE_TOP_K", 10),
			CandidateCap:  getEnvInt("ENGINE_CANDIDATE_CAP", 500),
			CacheTTL:      getEnvDuration("ENGINE_CACHE_TTL", time.Hour),
			TrainInterval: getEnvDuration("ENGINE_TRAIN_INTERVAL", 15*time.Minute),
			DiversityCap:  getEnvFloat("ENGINE_DIVERSITY_CAP", 0.4),
		},
		Offers: OffersConfig{
			MaxPercent:     getEnvFloat("OFFERS_MAX_PERCENT", 30),
			ScoreThreshold: getEnvFloat("OFFERS_SCORE_THRESHOLD", 0.5),
			TTL:            getEnvDuration("OFFERS_TTL", 48*time.Hour),
			PerUser:        getEnvInt("OFFERS_PER_USER", 4),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}

	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}

	return defaultVal
}
