package config

import (
	"os"
	"strconv"
	"strings"

	"alprofile/internal/extruder/pipeline"

	"github.com/gofiber/fiber/v3/log"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string
	Environment  string
	ReadTimeout  int
	WriteTimeout int
	BodyLimitMB  int
	LogLevel     string
	CORSOrigins  string

	// Геометрия пайплайна
	ArcSegments    int
	MatchTolerance float64
	MaxLoops       int
	MaxLoopLength  int
	FixTolerance   float64
	Holes          bool
	ThumbSize      int

	// Библиотека профилей
	ProfilesDBPath string
	ProfilesRoot   string
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "3001"),
		Environment:    getEnv("ENV", "development"),
		ReadTimeout:    getEnvAsInt("READ_TIMEOUT", 30),
		WriteTimeout:   getEnvAsInt("WRITE_TIMEOUT", 30),
		BodyLimitMB:    getEnvAsInt("BODY_LIMIT_MB", 32),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CORSOrigins:    getEnv("CORS_ORIGINS", "*"),
		ArcSegments:    getEnvAsInt("ARC_SEGMENTS", 48),
		MatchTolerance: getEnvAsFloat("MATCH_TOLERANCE", 0.01),
		MaxLoops:       getEnvAsInt("MAX_LOOPS", 256),
		MaxLoopLength:  getEnvAsInt("MAX_LOOP_LENGTH", 0),
		FixTolerance:   getEnvAsFloat("FIX_TOLERANCE", 0.1),
		Holes:          getEnvAsBool("HOLES", false),
		ThumbSize:      getEnvAsInt("THUMB_SIZE", 280),
		ProfilesDBPath: getEnv("PROFILES_DB_PATH", "data/db/profiles.db"),
		ProfilesRoot:   getEnv("PROFILES_ROOT", "data/profiles"),
	}
}

// PipelineOptions геометрические настройки; некорректные значения
// заменяются значениями по умолчанию.
func (c *Config) PipelineOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	if c.ArcSegments > 0 {
		opts.ArcSegments = c.ArcSegments
	}
	if c.MatchTolerance > 0 {
		opts.Tolerance = c.MatchTolerance
	}
	if c.MaxLoops >= 0 {
		opts.MaxLoops = c.MaxLoops
	}
	if c.MaxLoopLength >= 0 {
		opts.MaxLoopLength = c.MaxLoopLength
	}
	if c.FixTolerance > 0 {
		opts.FixTolerance = c.FixTolerance
	}
	opts.Holes = c.Holes
	return opts
}

// Level уровень логгера fiber по LOG_LEVEL.
func (c *Config) Level() log.Level {
	switch strings.ToLower(c.LogLevel) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	}
	return log.LevelInfo
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
