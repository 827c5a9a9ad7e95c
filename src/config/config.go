package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

/*
The process-wide configuration. It is read from the environment once at
startup, after loading a .env file from the working directory if one exists.
Every setting has a default suitable for local development.
*/
var Config ForumWikiConfig

func init() {
	_ = godotenv.Load()
	Config = FromEnv(os.Getenv)
}

// FromEnv builds a config from the given lookup function (usually os.Getenv).
func FromEnv(getenv func(string) string) ForumWikiConfig {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	return ForumWikiConfig{
		Env:      Environment(get("FW_ENV", string(Dev))),
		LogLevel: parseLogLevel(get("FW_LOG_LEVEL", "info"), zerolog.InfoLevel),
		Postgres: PostgresConfig{
			User:     get("FW_PG_USER", "forumwiki"),
			Password: get("FW_PG_PASSWORD", "password"),
			Hostname: get("FW_PG_HOST", "localhost"),
			Port:     parseInt(get("FW_PG_PORT", ""), 5432),
			DbName:   get("FW_PG_DBNAME", "forumwiki"),
			LogLevel: parsePgLogLevel(get("FW_PG_LOG_LEVEL", "warn")),
			MinConn:  int32(parseInt(get("FW_PG_MIN_CONN", ""), 2)),
			MaxConn:  int32(parseInt(get("FW_PG_MAX_CONN", ""), 20)),
		},
		Sessions: SessionsConfig{
			Backend:  SessionBackend(get("FW_SESSIONS_BACKEND", string(SessionsInPostgres))),
			RedisURL: get("FW_REDIS_URL", "redis://localhost:6379/0"),
			TTL:      parseDuration(get("FW_SESSION_TTL", ""), 0),
		},
		Files: FilesConfig{
			Backend:    FilesBackend(get("FW_FILES_BACKEND", string(FilesOnDisk))),
			Dir:        get("FW_FILES_DIR", "files"),
			S3Endpoint: get("FW_S3_ENDPOINT", "http://localhost:9004"),
			S3Region:   get("FW_S3_REGION", "dummy-region"),
			S3Bucket:   get("FW_S3_BUCKET", "forumwiki-files"),
			S3Key:      get("FW_S3_KEY", "dummy"),
			S3Secret:   get("FW_S3_SECRET", "dummy"),
		},
		Meili: MeiliConfig{
			URL:    get("FW_MEILI_URL", ""),
			APIKey: get("FW_MEILI_API_KEY", ""),
		},
	}
}

func parseInt(s string, fallback int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}

func parseLogLevel(s string, fallback zerolog.Level) zerolog.Level {
	if level, err := zerolog.ParseLevel(strings.ToLower(s)); err == nil {
		return level
	}
	return fallback
}

func parsePgLogLevel(s string) tracelog.LogLevel {
	if level, err := tracelog.LogLevelFromString(strings.ToLower(s)); err == nil {
		return level
	}
	return tracelog.LogLevelWarn
}
