package cliutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupDatabase opens a gorm handle from a DATABASE_URL-style string. Both
// sqlite:// and postgres:// schemes are understood; sqlite gets a single
// connection and WAL mode.
func SetupDatabase(dburl string, maxConnections int) (*gorm.DB, error) {
	var dial gorm.Dialector

	isSqlite := false
	openConns := maxConnections
	if strings.HasPrefix(dburl, "sqlite://") {
		sqliteSuffix := dburl[len("sqlite://"):]
		// if this isn't ":memory:", ensure that directory exists (eg, if db
		// file is being initialized)
		if !strings.Contains(sqliteSuffix, ":?") {
			os.MkdirAll(filepath.Dir(sqliteSuffix), os.ModePerm)
		}
		dial = sqlite.Open(sqliteSuffix)
		openConns = 1
		isSqlite = true
	} else if strings.HasPrefix(dburl, "postgresql://") || strings.HasPrefix(dburl, "postgres://") {
		// can pass entire URL, with prefix, to gorm driver
		dial = postgres.Open(dburl)
	} else {
		return nil, fmt.Errorf("unsupported or unrecognized DATABASE_URL scheme")
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(),
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxIdleConns(80)
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite {
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
		if err := db.Exec("PRAGMA synchronous=normal;").Error; err != nil {
			return nil, err
		}
	}

	return db, nil
}

type LogOptions struct {
	// text|json
	LogFormat string

	// info|debug|warn|error
	LogLevel string
}

func firstenv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

// SetupSlog integrates passed in options and env vars, installs the result
// as the slog default, and returns it.
//
// KAGURA_LOG_LEVEL=info|debug|warn|error
//
// KAGURA_LOG_FMT=text|json
func SetupSlog(options LogOptions) (*slog.Logger, error) {
	var hopts slog.HandlerOptions
	hopts.Level = slog.LevelInfo
	hopts.AddSource = true

	if options.LogLevel == "" {
		options.LogLevel = firstenv("KAGURA_LOG_LEVEL", "LOG_LEVEL")
	}
	switch strings.ToLower(options.LogLevel) {
	case "", "info":
		hopts.Level = slog.LevelInfo
	case "debug":
		hopts.Level = slog.LevelDebug
	case "warn":
		hopts.Level = slog.LevelWarn
	case "error":
		hopts.Level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %q", options.LogLevel)
	}

	if options.LogFormat == "" {
		options.LogFormat = firstenv("KAGURA_LOG_FMT", "LOG_FORMAT")
	}
	var handler slog.Handler
	switch strings.ToLower(options.LogFormat) {
	case "", "text":
		handler = slog.NewTextHandler(os.Stdout, &hopts)
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &hopts)
	default:
		return nil, fmt.Errorf("unknown log format: %q", options.LogFormat)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
