// Package email abstracts outbound email delivery. The mailbox module
// persists a sent thread and then hands a copy to a Sender: Postmark when
// tokens are configured, a filesystem DevSender everywhere else.
package email

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrFailedToSend  = errors.New("email: failed to send")
	ErrInvalidConfig = errors.New("email: invalid config")
	ErrInvalidParams = errors.New("email: invalid send params")
)

// emailRegex is intentionally loose; real validation happens at delivery.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidAddress reports whether s looks like an email address.
func IsValidAddress(s string) bool {
	return emailRegex.MatchString(s)
}

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, params SendParams) error
}

// SendParams describes one outbound email.
type SendParams struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

// Validate checks the minimum required fields before delivery is attempted.
func (p SendParams) Validate() error {
	if strings.TrimSpace(p.To) == "" {
		return fmt.Errorf("%w: To is required", ErrInvalidParams)
	}
	if !IsValidAddress(p.To) {
		return fmt.Errorf("%w: To must be a valid email address", ErrInvalidParams)
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	}
	if strings.TrimSpace(p.BodyHTML) == "" {
		return fmt.Errorf("%w: BodyHTML is required", ErrInvalidParams)
	}
	return nil
}

// Config holds delivery configuration. The Postmark tokens are optional so
// development deployments fall back to the DevSender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"me@mailroom.local"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/outbox"`
}

// NewSenderFromConfig picks the Postmark client when both tokens are set and
// the filesystem DevSender otherwise.
func NewSenderFromConfig(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken != "" && cfg.PostmarkAccountToken != "" {
		return NewPostmarkSender(cfg)
	}
	return NewDevSender(cfg.DevOutputDir), nil
}
