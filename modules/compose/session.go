package compose

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailroom/modules/templates"
	"github.com/dmitrymomot/mailroom/pkg/environment"
	"github.com/dmitrymomot/mailroom/pkg/placeholder"
	"github.com/dmitrymomot/mailroom/pkg/statemachine"
)

// Session is one operator's compose flow. All state lives in memory; nothing
// is persisted, and an idle session is eventually swept by the registry.
// Methods are safe for concurrent use.
type Session struct {
	ID uuid.UUID

	mu         sync.Mutex
	fsm        *statemachine.Machine
	mode       Mode
	recipients []placeholder.Recipient
	content    Content
	lastActive time.Time
}

func newSession(id uuid.UUID, now time.Time) *Session {
	s := &Session{ID: id, lastActive: now}

	m := statemachine.New(StateChoosingMode)
	m.AddTransition(StateChoosingMode, StateChoosingRecipients, eventChooseMode,
		[]statemachine.Guard{func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
			mode, ok := data.(Mode)
			return ok && (mode == ModeSingle || mode == ModeBulk)
		}},
		[]statemachine.Action{func(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
			s.mode = data.(Mode)
			return nil
		}})
	m.AddTransition(StateChoosingRecipients, StateEditingContent, eventRecipientsReady, nil, nil)
	m.AddTransition(StateEditingContent, StatePreviewing, eventPreview, nil, nil)
	m.AddTransition(StatePreviewing, StateEditingContent, eventEdit, nil, nil)
	m.AddTransition(StatePreviewing, StateCopying, eventCopy, nil, nil)
	m.AddTransition(StateCopying, StateCopying, eventCopy, nil, nil)
	m.AddTransition(StateCopying, StatePreviewing, eventPreview, nil, nil)
	m.AddTransition(StateCopying, StateEditingContent, eventEdit, nil, nil)
	// Send is gated twice: single mode only, and never in production.
	m.AddTransition(StatePreviewing, StateSending, eventSend,
		[]statemachine.Guard{
			func(_ context.Context, _ statemachine.State, _ statemachine.Event, _ any) bool {
				return s.mode == ModeSingle
			},
			func(ctx context.Context, _ statemachine.State, _ statemachine.Event, _ any) bool {
				return !environment.IsProduction(ctx)
			},
		}, nil)

	s.fsm = m
	return s
}

// Snapshot is the read view of a session returned by the HTTP layer.
type Snapshot struct {
	ID         uuid.UUID               `json:"id"`
	State      string                  `json:"state"`
	Mode       Mode                    `json:"mode,omitempty"`
	Recipients []placeholder.Recipient `json:"recipients"`
	Content    Content                 `json:"content"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.ID,
		State:      string(s.fsm.Current()),
		Mode:       s.mode,
		Recipients: slices.Clone(s.recipients),
		Content:    s.content,
	}
}

// ChooseMode fixes the recipient-count mode. Only valid once, from the
// initial state.
func (s *Session) ChooseMode(ctx context.Context, mode Mode) error {
	if mode != ModeSingle && mode != ModeBulk {
		return ErrInvalidMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.fsm.Fire(ctx, eventChooseMode, mode)
}

// SetRecipients attaches the active recipient list. The slice order is the
// preview order and is never reordered afterwards; recipients are copied so
// callers cannot mutate them once attached.
func (s *Session) SetRecipients(ctx context.Context, recipients []placeholder.Recipient) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.mode == ModeSingle && len(recipients) > 1 {
		return ErrSingleRecipient
	}
	if err := s.fsm.Fire(ctx, eventRecipientsReady, nil); err != nil {
		return err
	}
	s.recipients = slices.Clone(recipients)
	return nil
}

// SetContent replaces the draft wholesale. Calling it from the preview drops
// back to editing first.
func (s *Session) SetContent(ctx context.Context, c Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if err := s.backToEditing(ctx); err != nil {
		return err
	}
	s.content = c
	return nil
}

// LoadTemplate overwrites the draft subject and body with the template's
// values. This is a full overwrite, not a merge: unsaved edits are lost. The
// signature is left untouched.
func (s *Session) LoadTemplate(ctx context.Context, tpl templates.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if err := s.backToEditing(ctx); err != nil {
		return err
	}
	s.content.Subject = tpl.Subject
	s.content.Body = tpl.Body
	return nil
}

// PreviewBlock is one recipient's rendered output: HTML subject/body for the
// on-screen preview plus the plain-text form the copy action returns.
type PreviewBlock struct {
	Recipient placeholder.Recipient `json:"recipient"`
	Subject   string                `json:"subject"`
	Body      string                `json:"body"`
	Text      string                `json:"text"`
}

// Preview renders one block per recipient in active-list order. Single mode
// substitutes bracketed field labels for missing values so the operator sees
// which fields the current recipient lacks; bulk mode renders blanks.
func (s *Session) Preview(ctx context.Context) ([]PreviewBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.fsm.Current() != StatePreviewing {
		if err := s.fsm.Fire(ctx, eventPreview, nil); err != nil {
			return nil, err
		}
	}
	return s.renderBlocks(), nil
}

// Copy returns the plain-text rendering for the clipboard, blocks separated
// by a rule in bulk mode.
func (s *Session) Copy(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.fsm.Current() != StateCopying {
		if err := s.fsm.Fire(ctx, eventCopy, nil); err != nil {
			return "", err
		}
	}
	blocks := s.renderBlocks()
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	return strings.Join(texts, "\n\n---\n\n"), nil
}

// PrepareSend returns the rendered subject, body (with signature appended)
// and recipient address without changing state. The transition guards are
// checked up front and reject bulk mode and production environments. The
// session only reaches its terminal state through ConfirmSend, so a failed
// delivery leaves the preview intact and the send retryable.
func (s *Session) PrepareSend(ctx context.Context) (subject, body, recipientEmail string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if err := s.fsm.Check(ctx, eventSend, nil); err != nil {
		return "", "", "", err
	}

	r := s.recipients[0]
	subject = placeholder.Render(s.content.Subject, r)
	body = placeholder.Render(s.content.Body, r)
	if s.content.Signature != "" {
		body += "\n\n" + s.content.Signature
	}
	return subject, body, r.Email, nil
}

// ConfirmSend moves the session to its terminal sending state once the
// email has been persisted.
func (s *Session) ConfirmSend(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.fsm.Fire(ctx, eventSend, nil)
}

func (s *Session) backToEditing(ctx context.Context) error {
	if s.fsm.Current() == StateEditingContent {
		return nil
	}
	return s.fsm.Fire(ctx, eventEdit, nil)
}

func (s *Session) renderBlocks() []PreviewBlock {
	var opts []placeholder.Option
	if s.mode == ModeSingle {
		opts = append(opts, placeholder.WithBracketedLabels())
	}

	blocks := make([]PreviewBlock, 0, len(s.recipients))
	for _, r := range s.recipients {
		subject := placeholder.Render(s.content.Subject, r, opts...)
		bodyHTML := placeholder.RenderHTML(s.content.Body, r, opts...)
		text := subject + "\n\n" + placeholder.Render(s.content.Body, r, opts...)
		if s.content.Signature != "" {
			bodyHTML += "<br /><br />" + strings.ReplaceAll(s.content.Signature, "\n", "<br />")
			text += "\n\n" + s.content.Signature
		}
		blocks = append(blocks, PreviewBlock{
			Recipient: r,
			Subject:   subject,
			Body:      bodyHTML,
			Text:      text,
		})
	}
	return blocks
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}
