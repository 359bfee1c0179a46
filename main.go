package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"git.unix.lgbt/diamondburned/loopd/loopd"
	"git.unix.lgbt/diamondburned/loopd/loopd/config"
	"git.unix.lgbt/diamondburned/loopd/loopd/exec"
	"git.unix.lgbt/diamondburned/loopd/loopd/journal"
	"git.unix.lgbt/diamondburned/loopd/loopd/logging"
	"git.unix.lgbt/diamondburned/loopd/loopd/maintenance"
	"git.unix.lgbt/diamondburned/loopd/loopd/marker"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	app := &cli.Command{
		Name:           "loopd",
		Usage:          "run a command over and over until told to restart",
		DefaultCommand: "run",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML or .env config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run the daemon loop",
				ArgsUsage: "-- command [args...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Usage:   "run even if the host is down for maintenance",
						Sources: cli.EnvVars("LOOPD_FORCE"),
					},
					&cli.IntFlag{
						Name:    "memory",
						Usage:   "stop once resident memory reaches this many megabytes, 0 to disable",
						Sources: cli.EnvVars("LOOPD_MEMORY"),
					},
					&cli.FloatFlag{
						Name:    "sleep",
						Usage:   "seconds to sleep between iterations",
						Sources: cli.EnvVars("LOOPD_SLEEP"),
					},
					&cli.IntFlag{
						Name:    "timeout",
						Usage:   "seconds an iteration may run for, 0 to disable",
						Sources: cli.EnvVars("LOOPD_TIMEOUT"),
					},
				},
				Action: run,
			},
			{
				Name:   "restart",
				Usage:  "ask every running daemon to restart after its current iteration",
				Action: restart,
			},
			{
				Name:   "status",
				Usage:  "print the last restart broadcast and the daemon's state",
				Action: status,
			},
			{
				Name:  "down",
				Usage: "put the host into maintenance mode",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "message",
						Usage: "reason shown by status",
					},
				},
				Action: down,
			},
			{
				Name:   "up",
				Usage:  "take the host out of maintenance mode",
				Action: up,
			},
			{
				Name:      "cron",
				Usage:     "print crontab lines that keep the daemon running",
				ArgsUsage: "-- command [args...]",
				Action:    cron,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}

		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.Parse(config.Flags{Config: c.String("config")})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.NewLogger(
		logging.WithLogLevel(cfg.LogLevel),
		logging.WithName(cfg.Name),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}
	return log, nil
}

// workerOptions returns the config's worker options with the flags that were
// explicitly given applied over them.
func workerOptions(c *cli.Command, cfg *config.Config) loopd.Options {
	w := cfg.Worker

	if c.IsSet("force") {
		w.Force = c.Bool("force")
	}
	if c.IsSet("memory") {
		w.MemoryMB = int(c.Int("memory"))
	}
	if c.IsSet("sleep") {
		w.SleepSeconds = c.Float("sleep")
	}
	if c.IsSet("timeout") {
		w.TimeoutSeconds = int(c.Int("timeout"))
	}

	return w.Options()
}

// openMarker opens the configured restart marker store. A nil Marker is
// returned for the "none" driver.
func openMarker(ctx context.Context, cfg *config.Config) (loopd.Marker, func(), error) {
	switch cfg.Marker.Driver {
	case config.MarkerFile:
		return marker.NewFile(cfg.Marker.Dir), func() {}, nil
	case config.MarkerRedis:
		client, err := marker.NewRedisClient(ctx, cfg.Marker.Redis.ToConfig())
		if err != nil {
			return nil, nil, err
		}
		return marker.NewRedis(client), func() { client.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func run(ctx context.Context, c *cli.Command) error {
	argv := c.Args().Slice()
	if len(argv) == 0 {
		return errors.New("missing command to run")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	j, err := journal.NewFileLockJournaler(cfg.Journal)
	if err != nil {
		if errors.Is(err, journal.ErrLockedElsewhere) {
			// Non-fatal error; cron will try again in a minute.
			log.Info("loopd is already running", zap.String("journal", cfg.Journal))
			return nil
		}

		return errors.Wrap(err, "failed to acquire journal lock")
	}
	defer j.Close()

	journaler := journal.MultiWriter(j, journal.NewHumanWriter(log))

	m, closeMarker, err := openMarker(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open restart marker")
	}
	defer closeMarker()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	host := maintenance.TryWatch(watchCtx, cfg.DownFile, journaler)

	w := loopd.NewWorker(journaler,
		loopd.WithMarker(m, cfg.RestartKey()),
		loopd.WithHost(host),
	)

	out := w.Daemon(ctx, exec.NewCommand(argv).Run, workerOptions(c, cfg))
	if out.Kind == loopd.Hard {
		os.Exit(out.Status)
	}

	if out.Status == loopd.ExitOK {
		return nil
	}

	return cli.Exit("", out.Status)
}

func restart(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	m, closeMarker, err := openMarker(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open restart marker")
	}
	defer closeMarker()

	if m == nil {
		return errors.New("restart broadcasts are disabled by the marker driver")
	}

	key := cfg.RestartKey()

	t, err := loopd.Broadcast(ctx, m, key)
	if err != nil {
		return err
	}

	journal.NewHumanWriter(log).Write(&loopd.EventRestartBroadcast{
		Key:  key,
		Time: t.UnixNano(),
	})

	fmt.Println("Broadcasting daemon command restart signal.")
	return nil
}

func status(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	m, closeMarker, err := openMarker(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open restart marker")
	}
	defer closeMarker()

	if m != nil {
		t, err := m.LastRestart(ctx, cfg.RestartKey())
		switch {
		case err != nil:
			fmt.Println("last restart: unknown:", err)
		case t.IsZero():
			fmt.Println("last restart: never")
		default:
			fmt.Println("last restart:", t.Format(time.RFC3339))
		}
	}

	info, err := maintenance.ReadDownInfo(cfg.DownFile)
	switch {
	case err != nil:
		fmt.Println("maintenance: unknown:", err)
	case info == nil:
		fmt.Println("maintenance: up")
	case info.Message != "":
		fmt.Printf("maintenance: down (%s)\n", info.Message)
	default:
		fmt.Println("maintenance: down")
	}

	ev, t, err := journal.LastLifecycleEvent(cfg.Journal)
	if err != nil {
		if errors.Is(err, journal.ErrNoEvent) || errors.Is(err, os.ErrNotExist) {
			fmt.Println("worker: never started")
			return nil
		}
		return err
	}

	fmt.Println("worker:", describeLifecycle(ev), "at", t.Format(time.RFC3339))
	return nil
}

func describeLifecycle(ev loopd.Event) string {
	switch ev := ev.(type) {
	case *loopd.EventWorkerStarting:
		return fmt.Sprintf("started (pid %d)", ev.PID)
	case *loopd.EventWorkerStopping:
		return fmt.Sprintf("stopped (pid %d, %s)", ev.PID, ev.Outcome())
	default:
		return ev.Type()
	}
}

func down(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return maintenance.Down(cfg.DownFile, c.String("message"))
}

func up(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return maintenance.Up(cfg.DownFile)
}

func cron(ctx context.Context, c *cli.Command) error {
	argv := c.Args().Slice()
	if len(argv) == 0 {
		return errors.New("missing command to run")
	}

	for _, line := range cronLines(os.Args[0], c.String("config"), argv) {
		fmt.Println(line)
	}

	return nil
}

// cronLines returns crontab lines that start the daemon on boot and relaunch
// it every minute. Relaunching a running daemon is a no-op, since the journal
// lock is already held.
func cronLines(exe, configPath string, argv []string) []string {
	crontimes := [...]string{
		"# Start loopd immediately on startup.",
		"@reboot",
		"# Relaunch loopd every minute if it has stopped.",
		"* * * * *",
	}

	cmd := []string{exe}
	if configPath != "" {
		cmd = append(cmd, "-c", strconv.Quote(configPath))
	}
	cmd = append(cmd, "run", "--")
	for _, arg := range argv {
		cmd = append(cmd, strconv.Quote(arg))
	}

	joined := strings.Join(cmd, " ")

	lines := make([]string, 0, len(crontimes))
	for _, crontime := range crontimes {
		if strings.HasPrefix(crontime, "#") {
			lines = append(lines, crontime)
			continue
		}

		lines = append(lines, crontime+" "+joined)
	}

	return lines
}
