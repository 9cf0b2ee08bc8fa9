package main

import (
	"context"
	"fmt"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/hamed0406/nickicker/internal/action"
	"github.com/hamed0406/nickicker/internal/config"
	"github.com/hamed0406/nickicker/internal/httpapi"
	"github.com/hamed0406/nickicker/internal/logging"
	"github.com/hamed0406/nickicker/internal/notify"
	"github.com/hamed0406/nickicker/internal/outage"
	"github.com/hamed0406/nickicker/internal/probe"
	"github.com/hamed0406/nickicker/internal/repo/memory"
	"github.com/hamed0406/nickicker/internal/scheduler"
)

var version = "dev"

const (
	defaultPIDFile = "/var/run/nickickerd.pid"
	// set in the environment of the detached child
	daemonEnv = "NICKICKERD_DETACHED"
)

type Command struct {
	OutStream io.Writer
	ErrStream io.Writer

	ConfigPath  string
	Foreground  bool
	PIDFile     string
	ShowVersion bool
	ShowHelp    bool

	flags *pflag.FlagSet
}

func (cmd *Command) ParseArgs(args []string) (exitCode int) {
	flags := pflag.NewFlagSet("nickickerd", pflag.ContinueOnError)
	flags.SetOutput(cmd.ErrStream)

	flags.StringVarP(&cmd.ConfigPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	flags.BoolVarP(&cmd.Foreground, "foreground", "f", false, "Stay in the foreground and log to stderr too")
	flags.StringVar(&cmd.PIDFile, "pid-file", defaultPIDFile, "PID file written in daemon mode")
	flags.BoolVarP(&cmd.ShowVersion, "version", "v", false, "Show version")
	flags.BoolVarP(&cmd.ShowHelp, "help", "h", false, "Show help message")

	if err := flags.Parse(args[1:]); err != nil {
		fmt.Fprintln(cmd.ErrStream, err)
		fmt.Fprintf(cmd.ErrStream, "\nPlease see `%s -h` for more information.\n", args[0])
		return 2
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(cmd.ErrStream, "unexpected arguments: %v\n", flags.Args())
		return 2
	}
	cmd.flags = flags
	return 0
}

func (cmd *Command) Run(args []string) (exitCode int) {
	if code := cmd.ParseArgs(args); code != 0 {
		return code
	}
	if cmd.ShowVersion {
		fmt.Fprintf(cmd.OutStream, "nickickerd version %s\n", version)
		return 0
	}
	if cmd.ShowHelp {
		fmt.Fprintf(cmd.ErrStream, "Usage: %s [-f] [-c CONFIG] [--pid-file PATH]\n\n", args[0])
		cmd.flags.PrintDefaults()
		return 0
	}

	if code := cmd.resolveConfigPath(); code != 0 {
		return code
	}

	// configuration errors are fatal and must reach the terminal, so load
	// before detaching
	cfg, err := config.Load(cmd.ConfigPath)
	if err != nil {
		fmt.Fprintf(cmd.ErrStream, "error: %s\n", err)
		return 1
	}

	if !cmd.Foreground && os.Getenv(daemonEnv) == "" {
		pid, err := detach(daemonArgs(args, cmd.ConfigPath), daemonEnv)
		if err != nil {
			fmt.Fprintf(cmd.ErrStream, "error: failed to start daemon: %s\n", err)
			return 1
		}
		fmt.Fprintf(cmd.OutStream, "nickickerd started with pid %d\n", pid)
		return 0
	}

	logger, err := logging.NewLogger(logging.Options{
		Dir:        cfg.LogDir,
		Level:      cfg.LogLevel,
		Console:    cmd.Foreground,
		ConsoleOut: cmd.ErrStream,
	})
	if err != nil {
		fmt.Fprintf(cmd.ErrStream, "error: failed to open log: %s\n", err)
		return 1
	}
	defer logger.Sync()

	if !cmd.Foreground && cmd.PIDFile != "" {
		if err := os.WriteFile(cmd.PIDFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
			logger.Warn("pid_file_error", zap.String("path", cmd.PIDFile), zap.Error(err))
		} else {
			defer os.Remove(cmd.PIDFile)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, logger, cfg); err != nil {
		logger.Error("startup_failed", zap.Error(err))
		return 1
	}
	return 0
}

// resolveConfigPath makes ConfigPath absolute, since the detached child runs
// from "/". A file named explicitly with -c must exist; only the default path
// may be absent.
func (cmd *Command) resolveConfigPath() (exitCode int) {
	abs, err := filepath.Abs(cmd.ConfigPath)
	if err != nil {
		fmt.Fprintf(cmd.ErrStream, "error: %s\n", err)
		return 1
	}
	cmd.ConfigPath = abs

	if cmd.flags != nil && cmd.flags.Changed("config") {
		if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(cmd.ErrStream, "error: config file %s does not exist\n", abs)
			return 1
		}
	}
	return 0
}

// daemonArgs appends the resolved config path so the child does not depend
// on the parent's working directory. pflag keeps the last value given.
func daemonArgs(args []string, configPath string) []string {
	out := make([]string, 0, len(args)+2)
	out = append(out, args...)
	return append(out, "--config", configPath)
}

// serve wires the daemon together and blocks until ctx is cancelled.
func serve(ctx context.Context, logger *zap.Logger, cfg config.Config) error {
	if cfg.Source == "" {
		logger.Warn("config_not_found_using_defaults")
	}
	logger.Info("config_loaded",
		zap.String("source", cfg.Source),
		zap.Int("endpoints", len(cfg.Endpoints)),
		zap.Duration("test_interval", cfg.TestInterval.Std()),
		zap.Duration("outage_threshold", cfg.OutageThreshold.Std()),
		zap.Strings("actions", cfg.Actions),
		zap.String("probe_method", cfg.Probe.Method),
	)

	history := memory.New(cfg.HistorySize, memory.DefaultEvents)

	checker, closeChecker, setupErr := probe.NewChecker(probe.Options{
		Method:       cfg.Probe.Method,
		TCPPort:      uint16(cfg.Probe.TCPPort),
		DNSQuery:     cfg.Probe.DNSQuery,
		Retries:      cfg.Probe.Retries,
		RetryBackoff: cfg.Probe.RetryBackoff.Std(),
		Privileged:   cfg.Probe.Privileged,
	})
	defer closeChecker()
	if setupErr != nil {
		// checks on the affected family fail and setup is retried each cycle
		logger.Warn("icmp_setup_failed", zap.Error(setupErr))
	}
	prober := probe.NewProber(logger, checker, cfg.Probe.Timeout.Std(), cfg.Probe.Concurrency)

	machine, err := outage.NewMachine(cfg.OutageThreshold.Std())
	if err != nil {
		return err
	}

	outageRefs := action.Parse(cfg.Actions)
	recoveryRefs := action.Parse(cfg.RecoveryActions)
	if unknown := append(action.Unknowns(outageRefs), action.Unknowns(recoveryRefs)...); len(unknown) > 0 {
		logger.Warn("unknown_actions_configured", zap.Strings("names", unknown))
	}

	dispatcher := action.NewDispatcher(logger, buildActions(logger, cfg, history), outageRefs, recoveryRefs, cfg.ActionTimeout.Std())
	dispatcher.Events = history

	mon, err := scheduler.NewMonitor(logger, prober, machine, cfg.DomainEndpoints(), cfg.TestInterval.Std(),
		scheduler.NewAlerter(logger, dispatcher, scheduler.DefaultQueueSize))
	if err != nil {
		return err
	}
	mon.History = history

	var wg sync.WaitGroup
	if cfg.StatusAddr != "" {
		api := httpapi.NewServer(logger, mon, history, version)
		h := api.Router(httpapi.RouterOptions{
			Keys:           cfg.APIKeys,
			AllowedOrigins: cfg.AllowedOrigins,
			ReqPerMin:      120,
			Burst:          60,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := httpapi.ListenAndServe(ctx, logger, cfg.StatusAddr, h); err != nil {
				logger.Error("api_error", zap.Error(err))
			}
		}()
	}

	mon.Run(ctx)
	wg.Wait()
	return nil
}

// buildActions registers only the actions whose configuration is usable;
// referencing any other one fails at dispatch time.
func buildActions(logger *zap.Logger, cfg config.Config, history *memory.Store) map[action.Kind]action.Action {
	actions := map[action.Kind]action.Action{
		action.LogBundle: action.NewLogBundle(logger, cfg.LogBundle.Dir, cfg.LogBundle.Files, history),
		action.Reboot:    action.NewReboot(logger, cfg.Reboot.Method, cfg.Reboot.Command),
	}
	if e := notify.NewEmail(cfg.Email.Host, cfg.Email.Port, cfg.Email.Username, cfg.Email.Password, cfg.Email.From, cfg.Email.To); e != nil {
		actions[action.Email] = action.NewNotify(e)
	}
	if s := notify.NewSlack(cfg.Webhook.URL); s != nil {
		actions[action.Webhook] = action.NewNotify(s)
	}

	var all notify.Multi
	for _, k := range []action.Kind{action.Email, action.Webhook} {
		if a, ok := actions[k].(*action.NotifyAction); ok {
			all = append(all, a.Notifier)
		}
	}
	if len(all) > 0 {
		actions[action.Notify] = action.NewNotify(all)
	}
	return actions
}

func main() {
	cmd := &Command{OutStream: os.Stdout, ErrStream: os.Stderr}
	os.Exit(cmd.Run(os.Args))
}
