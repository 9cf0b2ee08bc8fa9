package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

var ErrEmailDisabled = errors.New("email disabled")

// Email delivers notifications through an SMTP relay.
type Email struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string

	// SendMail is smtp.SendMail unless replaced in tests.
	SendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	Now      func() time.Time
}

func NewEmail(host string, port int, username, password, from string, to []string) *Email {
	if host == "" || from == "" || len(to) == 0 {
		return nil
	}
	return &Email{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		To:       to,
		SendMail: smtp.SendMail,
		Now:      time.Now,
	}
}

func (e *Email) Send(ctx context.Context, title, text string) error {
	if e == nil {
		return ErrEmailDisabled
	}

	var auth smtp.Auth
	if e.Username != "" {
		auth = smtp.PlainAuth("", e.Username, e.Password, e.Host)
	}
	addr := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	msg := e.message(title, text)

	// smtp.SendMail has no context; run it aside so the caller's deadline holds.
	done := make(chan error, 1)
	go func() { done <- e.SendMail(addr, auth, e.From, e.To, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail via %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail via %s: %w", addr, ctx.Err())
	}
}

func (e *Email) message(title, text string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", title))
	fmt.Fprintf(&b, "Date: %s\r\n", e.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(text, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
