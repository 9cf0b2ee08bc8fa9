package action

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hamed0406/nickicker/internal/domain"
	"github.com/hamed0406/nickicker/internal/notify"
)

// NotifyAction sends a human readable summary of the transition.
type NotifyAction struct {
	Notifier notify.Notifier
	Hostname string
}

func NewNotify(n notify.Notifier) *NotifyAction {
	host, _ := os.Hostname()
	return &NotifyAction{Notifier: n, Hostname: host}
}

func (a *NotifyAction) Run(ctx context.Context, ev domain.Event) error {
	title, text := Message(a.Hostname, ev)
	return a.Notifier.Send(ctx, title, text)
}

// Message renders ev for email and chat.
func Message(host string, ev domain.Event) (title, text string) {
	if host == "" {
		host = "unknown host"
	}
	switch ev.Transition {
	case domain.Recovered:
		title = "🟢 Connectivity recovered on " + host
	default:
		title = "🔴 Internet outage confirmed on " + host
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Episode: %s\n", ev.EpisodeID)
	if !ev.OutageStart.IsZero() {
		lasted := strings.TrimSpace(humanize.RelTime(ev.OutageStart, ev.At, "", ""))
		fmt.Fprintf(&b, "Outage started: %s\n", ev.OutageStart.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "Lasted: %s (%s)\n", lasted, ev.Duration().Round(time.Second))
	}
	fmt.Fprintf(&b, "Reported: %s", ev.At.UTC().Format(time.RFC3339))
	return title, b.String()
}
