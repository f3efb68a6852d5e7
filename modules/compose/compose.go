// Package compose implements the compose flow: a server-side session walks
// an operator from mode choice through recipient selection and content
// editing to a rendered preview, ending in copy-to-clipboard text or a
// single-recipient send.
package compose

import (
	"errors"

	"github.com/dmitrymomot/mailroom/pkg/statemachine"
)

var (
	ErrSessionNotFound = errors.New("compose: session not found")
	ErrInvalidMode     = errors.New("compose: mode must be single or bulk")
	ErrNoRecipients    = errors.New("compose: at least one recipient is required")
	// ErrSingleRecipient rejects attaching more than one recipient to a
	// single-mode session.
	ErrSingleRecipient = errors.New("compose: single mode accepts exactly one recipient")
)

// Mode is the recipient-count mode chosen up front. Send is only available
// in single mode.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeBulk   Mode = "bulk"
)

// Session states. A session starts in StateChoosingMode and can only move
// forward through the flow; editing is reachable again from the preview.
const (
	StateChoosingMode       statemachine.State = "choosing_mode"
	StateChoosingRecipients statemachine.State = "choosing_recipients"
	StateEditingContent     statemachine.State = "editing_content"
	StatePreviewing         statemachine.State = "previewing"
	StateCopying            statemachine.State = "copying"
	StateSending            statemachine.State = "sending"
)

const (
	eventChooseMode      statemachine.Event = "choose_mode"
	eventRecipientsReady statemachine.Event = "recipients_ready"
	eventEdit            statemachine.Event = "edit"
	eventPreview         statemachine.Event = "preview"
	eventCopy            statemachine.Event = "copy"
	eventSend            statemachine.Event = "send"
)

// Content is the editable email draft. The signature is kept separate from
// the body so loading a template never touches it.
type Content struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Signature string `json:"signature"`
}
