package config

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Environment string

const (
	Live Environment = "live"
	Beta Environment = "beta"
	Dev  Environment = "dev"
)

type ForumWikiConfig struct {
	Env      Environment
	LogLevel zerolog.Level
	Postgres PostgresConfig
	Sessions SessionsConfig
	Files    FilesConfig
	Meili    MeiliConfig
}

type PostgresConfig struct {
	User     string
	Password string
	Hostname string
	Port     int
	DbName   string
	LogLevel tracelog.LogLevel
	MinConn  int32
	MaxConn  int32
}

func (info PostgresConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s", info.User, info.Password, info.Hostname, info.Port, info.DbName)
}

type SessionBackend string

const (
	SessionsInPostgres SessionBackend = "postgres"
	SessionsInRedis    SessionBackend = "redis"
)

type SessionsConfig struct {
	Backend  SessionBackend
	RedisURL string

	// Zero means sessions live until they are removed explicitly.
	TTL time.Duration
}

type FilesBackend string

const (
	FilesOnDisk FilesBackend = "local"
	FilesInS3   FilesBackend = "s3"
)

type FilesConfig struct {
	Backend FilesBackend
	Dir     string

	S3Endpoint string
	S3Region   string
	S3Bucket   string
	S3Key      string
	S3Secret   string
}

type MeiliConfig struct {
	URL    string // empty disables Meilisearch
	APIKey string
}
