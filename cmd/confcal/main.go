package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"confcal/internal/agenda"
	"confcal/internal/config"
	appLog "confcal/internal/log"
	"confcal/internal/refresh"
	"confcal/internal/source"
	"confcal/internal/tzabbr"
	"confcal/internal/web"
)

// flagConfig holds CLI flag values; they override the config file.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file and environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("confcal starting", "version", "1.0.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"agenda_url", conf.Agenda.URL,
		"fetcher", conf.Agenda.Fetcher,
		"policy", conf.Agenda.Policy,
		"refresh", conf.RefreshCron,
		"cache_ttl", conf.Calendar.CacheTTL,
		"once", flags.once,
	)

	svc, err := buildService(conf)
	if err != nil {
		appLog.Error("failed to initialize agenda pipeline", err)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		if err := runOnce(ctx, svc); err != nil {
			appLog.Error("agenda export failed", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, conf, svc); err != nil {
		appLog.Error("server exited with error", err)
		os.Exit(1)
	}
	appLog.Info("confcal exiting")
}

func buildService(conf *config.Config) (*agenda.Service, error) {
	policy, err := agenda.ParsePolicy(conf.Agenda.Policy)
	if err != nil {
		return nil, err
	}

	fetcher, err := source.New(conf.Agenda.Fetcher, conf.Agenda.URL, source.Options{
		Timeout:  conf.Agenda.Timeout,
		CacheDir: conf.Agenda.CacheDir,
	})
	if err != nil {
		return nil, err
	}

	zones := tzabbr.Build()
	appLog.Info("time zone abbreviations loaded", "count", zones.Len())

	return agenda.NewService(fetcher, agenda.NewNormalizer(zones), agenda.ServiceOptions{
		CalendarName:        conf.Calendar.Name,
		CalendarDescription: conf.Calendar.Description,
		Policy:              policy,
	}), nil
}

// runOnce writes a single calendar rendering to stdout.
func runOnce(ctx context.Context, svc *agenda.Service) error {
	cal, err := svc.Calendar(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, cal)
	return err
}

func serve(ctx context.Context, conf *config.Config, svc *agenda.Service) error {
	srv := web.NewServer(svc, web.Options{CacheTTL: conf.Calendar.CacheTTL})

	// Stopping the server for any reason also stops the schedule.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if conf.RefreshCron != "" {
		sched, err := refresh.New(conf.RefreshCron, srv, conf.Agenda.Timeout*2)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
	} else {
		appLog.Info("refresh schedule disabled")
	}

	err := srv.Start(ctx, conf.Listen)
	cancel()
	wg.Wait()
	return err
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file (created with defaults if missing)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch the agenda once, print the calendar to stdout and exit")

	flag.Parse()

	return cfg
}
