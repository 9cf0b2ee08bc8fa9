// cmd/preflight/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/hamed0406/nickicker/internal/action"
	"github.com/hamed0406/nickicker/internal/config"
)

type report struct {
	out, errOut io.Writer
	failed      bool
}

func (r *report) fail(msg string) { r.failed = true; fmt.Fprintln(r.errOut, "✖", msg) }
func (r *report) warn(msg string) { fmt.Fprintln(r.errOut, "⚠", msg) }
func (r *report) ok(msg string)   { fmt.Fprintln(r.out, "✔", msg) }

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("preflight", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	path := flags.StringP("config", "c", config.DefaultPath, "Configuration file to check")
	if err := flags.Parse(args[1:]); err != nil {
		return 2
	}

	r := &report{out: stdout, errOut: stderr}

	cfg, err := config.Load(*path)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			r.fail(e.Error())
		}
		return 1
	}
	if cfg.Source == "" {
		r.warn(*path + " not found; built-in defaults will be used")
	} else {
		r.ok("loaded " + cfg.Source)
	}

	check(r, cfg)

	if r.failed {
		return 1
	}
	r.ok("preflight passed")
	return 0
}

func check(r *report, cfg config.Config) {
	for _, ep := range cfg.Endpoints {
		if len(ep.Addresses) == 0 {
			r.warn("endpoint " + ep.Name + " has no addresses and will always count as down")
		}
	}
	r.ok(fmt.Sprintf("%d endpoints, interval %s, threshold %s", len(cfg.Endpoints), cfg.TestInterval, cfg.OutageThreshold))

	if cfg.OutageThreshold.Std() < cfg.TestInterval.Std() {
		r.warn("outage_threshold is shorter than test_interval; a single failed cycle will not be enough, the second one confirms")
	}

	refs := action.Parse(cfg.Actions)
	if unknown := action.Unknowns(refs); len(unknown) > 0 {
		r.warn("unknown actions will be skipped: " + strings.Join(unknown, ", "))
	}
	for _, ref := range refs {
		switch ref.Kind {
		case action.Reboot:
			r.warn("reboot is enabled; the host restarts on every confirmed outage")
			if cfg.Reboot.Method != "syscall" && len(cfg.Reboot.Command) == 0 {
				r.fail("reboot.command is empty")
			}
		case action.Email:
			if cfg.Email.Host == "" || cfg.Email.From == "" || len(cfg.Email.To) == 0 {
				r.fail("email action needs email.host, email.from and email.to")
			}
		case action.Webhook:
			if cfg.Webhook.URL == "" {
				r.fail("webhook action needs webhook.url (or NICKICKER_WEBHOOK_URL)")
			}
		case action.Notify:
			if cfg.Webhook.URL == "" && (cfg.Email.Host == "" || cfg.Email.From == "" || len(cfg.Email.To) == 0) {
				r.fail("notify action needs email or webhook settings")
			}
		case action.LogBundle:
			if len(cfg.LogBundle.Files) == 0 {
				r.fail("logbundle.files is empty")
			}
			if unix.Access(cfg.LogBundle.Dir, unix.W_OK) != nil {
				r.warn("logbundle.dir " + cfg.LogBundle.Dir + " is not writable")
			}
		}
	}

	if unix.Access(cfg.LogDir, unix.W_OK) != nil {
		r.warn("log_dir " + cfg.LogDir + " is not writable; the daemon will fail to start")
	} else {
		r.ok("log file " + filepath.Join(cfg.LogDir, "nickickerd.log"))
	}

	if cfg.StatusAddr == "" {
		r.ok("status API disabled")
	} else {
		r.ok("status API on " + cfg.StatusAddr)
		if len(cfg.APIKeys) == 0 {
			r.warn("status API has no api_keys; anyone who can reach it can read it")
		}
	}
}
