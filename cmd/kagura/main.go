package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kagura-bot/kagura/antispam"
	"github.com/kagura-bot/kagura/events"
	"github.com/kagura-bot/kagura/ledger"
	"github.com/kagura-bot/kagura/lockstore"
	"github.com/kagura-bot/kagura/moderation"
	"github.com/kagura-bot/kagura/platform"
	"github.com/kagura-bot/kagura/settings"
	"github.com/kagura-bot/kagura/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "kagura",
		Usage:   "moderation case and report coordination daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "info|debug|warn|error",
			EnvVars: []string{"KAGURA_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "text|json",
			EnvVars: []string{"KAGURA_LOG_FMT", "LOG_FORMAT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/kagura/kagura.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection string for locks and counters; empty runs in-memory",
			EnvVars: []string{"KAGURA_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:     "discord-token",
			Usage:    "bot token for the platform API",
			Required: true,
			EnvVars:  []string{"DISCORD_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "discord-host",
			Usage:   "override the platform API base URL",
			EnvVars: []string{"KAGURA_DISCORD_HOST"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the admin API",
			Value:   ":3899",
			EnvVars: []string{"KAGURA_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics",
			Value:   ":3898",
			EnvVars: []string{"KAGURA_METRICS_LISTEN"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
		&cli.DurationFlag{
			Name:    "scan-interval",
			Usage:   "how often the expiration scheduler scans for due cases",
			Value:   time.Minute,
			EnvVars: []string{"KAGURA_SCAN_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "settings-cache-ttl",
			Value:   5 * time.Minute,
			EnvVars: []string{"KAGURA_SETTINGS_CACHE_TTL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger, err := cliutil.SetupSlog(cliutil.LogOptions{
			LogLevel:  cctx.String("log-level"),
			LogFormat: cctx.String("log-format"),
		})
		if err != nil {
			return err
		}

		db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}

		store, err := ledger.NewStore(db, logger)
		if err != nil {
			return err
		}

		var locks lockstore.LockStore
		var rdb *redis.Client
		if redisURL := cctx.String("redis-url"); redisURL != "" {
			rlocks, err := lockstore.NewRedisLockStore(redisURL)
			if err != nil {
				return fmt.Errorf("connecting lock store: %w", err)
			}
			locks = rlocks
			ropts, err := redis.ParseURL(redisURL)
			if err != nil {
				return err
			}
			rdb = redis.NewClient(ropts)
		} else {
			logger.Warn("no redis configured, locks and counters are in-memory")
			locks = lockstore.NewMemLockStore()
		}

		cfg, err := settings.NewStore(db, rdb, cctx.Duration("settings-cache-ttl"))
		if err != nil {
			return err
		}

		discord := platform.NewDiscordClient(cctx.String("discord-token"), logger)
		if host := cctx.String("discord-host"); host != "" {
			discord.Host = host
		}

		reports := &moderation.ReportCoordinator{
			Ledger:   store,
			Locks:    locks,
			Notifier: moderation.NullNotifier{},
			Logger:   logger,
		}
		cases := &moderation.CaseCoordinator{
			Ledger:   store,
			Locks:    locks,
			Executor: &moderation.ActionExecutor{Platform: discord, Logger: logger},
			Reports:  reports,
			Notifier: moderation.NullNotifier{},
			Logger:   logger,
		}

		scheduler := moderation.NewExpirationScheduler(cases, store, logger)
		scheduler.Interval = cctx.Duration("scan-interval")

		detector := antispam.NewDetector(locks, cases, logger)
		dispatcher := events.NewDispatcher(logger)
		events.RegisterMessageCreate(dispatcher, detector)
		events.RegisterAutomodTimeout(dispatcher, cases, logger)
		events.RegisterReportTagChange(dispatcher, reports, store, cfg, logger)

		srv := NewServer(Config{
			Logger:     logger,
			Cases:      cases,
			Reports:    reports,
			Settings:   cfg,
			Dispatcher: dispatcher,
			Scheduler:  scheduler,
		})

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				logger.Error("failed to start metrics endpoint", "err", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		return srv.RunAPI(cctx.String("bind"))
	},
}
