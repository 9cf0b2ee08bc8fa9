// Package action resolves configured action names once at startup and runs
// them when the outage state machine emits a transition.
package action

import (
	"context"
	"errors"
	"strings"

	"github.com/hamed0406/nickicker/internal/domain"
)

var (
	ErrUnknown     = errors.New("unknown action")
	ErrTimeout     = errors.New("action timed out")
	ErrUnavailable = errors.New("action not configured")
)

// Kind is the closed set of actions the daemon knows how to run.
type Kind int

const (
	Unknown Kind = iota
	LogBundle
	Reboot
	Email
	Webhook
	// Notify sends to every configured notification channel at once.
	Notify
)

var kindNames = map[Kind]string{
	LogBundle: "logbundle",
	Reboot:    "reboot",
	Email:     "email",
	Webhook:   "webhook",
	Notify:    "notify",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Ref is one entry of a configured action list. Name keeps the text as
// written so unknown entries can be reported.
type Ref struct {
	Kind Kind
	Name string
}

func (r Ref) String() string {
	if r.Kind == Unknown {
		return r.Name
	}
	return r.Kind.String()
}

// Parse resolves names case-insensitively. Unknown names are kept as Unknown
// refs; they are skipped with a warning at dispatch time.
func Parse(names []string) []Ref {
	refs := make([]Ref, 0, len(names))
	for _, n := range names {
		ref := Ref{Kind: Unknown, Name: n}
		key := strings.ToLower(strings.TrimSpace(n))
		for k, kn := range kindNames {
			if kn == key {
				ref.Kind = k
				break
			}
		}
		refs = append(refs, ref)
	}
	return refs
}

// Unknowns lists the names in refs that did not resolve.
func Unknowns(refs []Ref) []string {
	var out []string
	for _, r := range refs {
		if r.Kind == Unknown {
			out = append(out, r.Name)
		}
	}
	return out
}

type Action interface {
	Run(ctx context.Context, ev domain.Event) error
}

// Func adapts a plain function to Action.
type Func func(ctx context.Context, ev domain.Event) error

func (f Func) Run(ctx context.Context, ev domain.Event) error { return f(ctx, ev) }
