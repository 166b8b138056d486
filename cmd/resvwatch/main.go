package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"resvwatch/internal/config"
	"resvwatch/internal/feed"
	"resvwatch/internal/job"
	appLog "resvwatch/internal/log"
	"resvwatch/internal/notify"
	"resvwatch/internal/report"
	"resvwatch/internal/snapshot"
)

const version = "0.1.0"

// flagConfig holds CLI flag values; they override the loaded config.
type flagConfig struct {
	configPath string
	statePath  string
	schedule   string
	once       bool
	logLevel   string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	applyFlags(&conf, flags)

	appLog.Setup(conf.LogLevel, conf.LogFormat)
	appLog.Info("resvwatch starting", "version", version)

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err)
		os.Exit(1)
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"feed_kind", conf.FeedKind,
		"state_path", conf.StatePath,
		"timezone", conf.Timezone,
		"horizon_days", conf.HorizonDays,
		"http_timeout", conf.HTTPTimeout.String(),
		"schedule", conf.Schedule,
		"once", flags.once,
	)

	j := buildJob(conf, loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Schedule == "" || flags.once {
		if err := runOnce(ctx, j); err != nil {
			stop()
			os.Exit(1)
		}
		return
	}

	if err := runScheduled(ctx, j, conf.Schedule, loc); err != nil {
		appLog.Error("scheduler failed", err, "schedule", conf.Schedule)
		stop()
		os.Exit(1)
	}
	appLog.Info("resvwatch exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "", "Path to optional config file (YAML/TOML); env vars override it")
	flag.StringVar(&cfg.statePath, "state", "", "Snapshot file path (overrides config if set)")
	flag.StringVar(&cfg.schedule, "schedule", "", "Cron spec to run repeatedly (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run a single fetch+diff+notify cycle and exit, ignoring any schedule")
	flag.StringVar(&cfg.logLevel, "log-level", "", "debug|info|warn|error (overrides config if set)")

	flag.Parse()

	return cfg
}

func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.statePath != "" {
		conf.StatePath = flags.statePath
	}
	if flags.schedule != "" {
		conf.Schedule = flags.schedule
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
}

func buildJob(conf config.Config, loc *time.Location) *job.Job {
	client := &http.Client{Timeout: conf.HTTPTimeout}

	var fetcher feed.Fetcher
	switch conf.FeedKind {
	case config.FeedICS:
		fetcher = feed.NewICS(conf.FeedURL, client)
	default:
		g := feed.NewGoogle(conf.FeedURL, conf.APIKey, client)
		g.TimeZone = conf.Timezone
		fetcher = g
	}

	formatter := report.DefaultFormatter()
	if conf.AddedTitle != "" {
		formatter.AddedTitle = conf.AddedTitle
	}
	if conf.RemovedTitle != "" {
		formatter.RemovedTitle = conf.RemovedTitle
	}

	return &job.Job{
		Fetcher:     fetcher,
		Store:       snapshot.NewStore(conf.StatePath),
		Notifier:    notify.NewWebhook(conf.WebhookURL, client),
		Formatter:   formatter,
		Location:    loc,
		HorizonDays: conf.HorizonDays,
	}
}

func runOnce(ctx context.Context, j *job.Job) error {
	out, err := j.Run(ctx)
	if err != nil {
		appLog.Error("run failed", err, "run_id", out.RunID, "state", string(out.Final()))
		return err
	}
	return nil
}

// runScheduled blocks until ctx is done. Overlapping ticks are skipped so
// at most one run touches the snapshot at a time; a failed run is left for
// the next tick to retry.
func runScheduled(ctx context.Context, j *job.Job, spec string, loc *time.Location) error {
	logger := appLog.CronLogger()
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(spec, func() {
		_ = runOnce(ctx, j)
	}); err != nil {
		return err
	}

	c.Start()
	appLog.Info("scheduler started", "schedule", spec, "timezone", loc.String())

	<-ctx.Done()
	appLog.Info("signal received, waiting for in-flight run")
	<-c.Stop().Done()
	return nil
}
