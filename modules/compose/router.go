package compose

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/mailroom/modules/directory"
	"github.com/dmitrymomot/mailroom/modules/mailbox"
	"github.com/dmitrymomot/mailroom/modules/templates"
	"github.com/dmitrymomot/mailroom/pkg/binder"
	"github.com/dmitrymomot/mailroom/pkg/email"
	"github.com/dmitrymomot/mailroom/pkg/handler"
	"github.com/dmitrymomot/mailroom/pkg/logger"
	"github.com/dmitrymomot/mailroom/pkg/placeholder"
	"github.com/dmitrymomot/mailroom/pkg/spreadsheet"
	"github.com/dmitrymomot/mailroom/pkg/statemachine"
)

// TemplateSource loads a template for the load-into-draft action.
// templates.Storage satisfies it.
type TemplateSource interface {
	GetByID(ctx context.Context, id, userID int64) (templates.Template, error)
}

// Directory lists selectable recipients. directory.Storage satisfies it.
type Directory interface {
	List(ctx context.Context) ([]directory.Entry, error)
}

// Dispatcher persists a single-recipient send. mailbox.Storage satisfies it.
type Dispatcher interface {
	SendSingle(ctx context.Context, senderID int64, subject, body, recipientEmail string) (mailbox.Thread, error)
}

// Service is the HTTP surface of the compose flow.
type Service struct {
	sessions  *Registry
	tpls      TemplateSource
	directory Directory
	mailer    Dispatcher
	sender    email.Sender
	userID    int64
	log       *slog.Logger
}

func NewService(sessions *Registry, tpls TemplateSource, dir Directory, mailer Dispatcher, sender email.Sender, userID int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		sessions:  sessions,
		tpls:      tpls,
		directory: dir,
		mailer:    mailer,
		sender:    sender,
		userID:    userID,
		log:       log,
	}
}

// Handle mounts the session lifecycle and every step of the flow:
//
//	POST   /                        — start a session
//	GET    /{id}                    — session snapshot
//	DELETE /{id}                    — discard the session
//	POST   /{id}/mode               — choose single or bulk
//	POST   /{id}/recipients         — attach recipients (directory or manual)
//	POST   /{id}/recipients/upload  — attach recipients from a CSV/XLSX file
//	POST   /{id}/template           — load a template into the draft
//	PUT    /{id}/content            — replace the draft
//	GET    /{id}/preview            — rendered blocks, one per recipient
//	POST   /{id}/copy               — plain-text rendering for the clipboard
//	POST   /{id}/send               — single-recipient send
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/", handler.Wrap(s.create))
	r.Get("/{id}", handler.Wrap(s.get, binder.Path()))
	r.Delete("/{id}", handler.Wrap(s.remove, binder.Path()))
	r.Post("/{id}/mode", handler.Wrap(s.chooseMode, binder.Path(), binder.JSON()))
	r.Post("/{id}/recipients", handler.Wrap(s.setRecipients, binder.Path(), binder.JSON()))
	r.Post("/{id}/recipients/upload", s.uploadRecipients)
	r.Post("/{id}/template", handler.Wrap(s.loadTemplate, binder.Path(), binder.JSON()))
	r.Put("/{id}/content", handler.Wrap(s.setContent, binder.Path(), binder.JSON()))
	r.Get("/{id}/preview", handler.Wrap(s.preview, binder.Path()))
	r.Post("/{id}/copy", handler.Wrap(s.copyText, binder.Path()))
	r.Post("/{id}/send", handler.Wrap(s.send, binder.Path()))
	return r
}

func (s *Service) create(_ context.Context, _ struct{}) handler.Response {
	sess := s.sessions.Create()
	return handler.JSONWithStatus(sess.Snapshot(), http.StatusCreated)
}

type sessionRequest struct {
	ID string `path:"id" json:"-"`
}

func (s *Service) get(_ context.Context, req sessionRequest) handler.Response {
	sess, resp := s.session(req.ID)
	if resp != nil {
		return resp
	}
	return handler.JSON(sess.Snapshot())
}

func (s *Service) remove(_ context.Context, req sessionRequest) handler.Response {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return handler.JSONError(handler.ErrNotFound)
	}
	s.sessions.Delete(id)
	return handler.NoContent()
}

type chooseModeRequest struct {
	ID   string `path:"id" json:"-"`
	Mode Mode   `json:"mode"`
}

func (s *Service) chooseMode(ctx context.Context, req chooseModeRequest) handler.Response {
	sess, resp := s.session(req.ID)
	if resp != nil {
		return resp
	}
	if err := sess.ChooseMode(ctx, req.Mode); err != nil {
		return s.flowError(ctx, err)
	}
	return handler.JSON(sess.Snapshot())
}

type setRecipientsRequest struct {
	ID         string                  `path:"id" json:"-"`
	Source     string                  `json:"source"`
	EntryIDs   []int64                 `json:"ids,omitempty"`
	Recipients []placeholder.Recipient `json:"recipients,omitempty"`
}

func (s *Service) setRecipients(ctx context.Context, req setRecipientsRequest) handler.Response {
	sess, resp := s.session(req.ID)
	if resp != nil {
		return resp
	}

	var recipients []placeholder.Recipient
	switch req.Source {
	case "directory":
		var err error
		recipients, err = s.fromDirectory(ctx, req.EntryIDs)
		if err != nil {
			return s.flowError(ctx, err)
		}
	case "manual":
		recipients = req.Recipients
	default:
		return handler.JSONError(handler.NewValidationError("source", "Source must be directory or manual"))
	}

	if err := sess.SetRecipients(ctx, recipients); err != nil {
		return s.flowError(ctx, err)
	}
	return handler.JSON(sess.Snapshot())
}

// uploadRecipients is the one multipart endpoint, so it bypasses the JSON
// binder and reads the form directly.
func (s *Service) uploadRecipients(w http.ResponseWriter, r *http.Request) {
	render := func(resp handler.Response) {
		if err := resp.Render(w, r); err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}

	sess, resp := s.session(chi.URLParam(r, "id"))
	if resp != nil {
		render(resp)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		render(handler.JSONError(handler.NewValidationError("file", "A CSV or XLSX file is required")))
		return
	}
	defer file.Close()

	recipients, err := spreadsheet.Parse(header.Filename, file)
	if err != nil {
		render(handler.JSONError(handler.NewValidationError("file", uploadProblem(err))))
		return
	}

	if err := sess.SetRecipients(r.Context(), recipients); err != nil {
		render(s.flowError(r.Context(), err))
		return
	}
	render(handler.JSON(sess.Snapshot()))
}

func uploadProblem(err error) string {
	switch {
	case errors.Is(err, spreadsheet.ErrUnknownInput):
		return "Only .csv and .xlsx files are supported"
	case errors.Is(err, spreadsheet.ErrEmptyFile):
		return "The file contains no recipient rows"
	default:
		return "The file could not be read"
	}
}

type loadTemplateRequest struct {
	ID         string `path:"id" json:"-"`
	TemplateID int64  `json:"templateId"`
}

func (s *Service) loadTemplate(ctx context.Context, req loadTemplateRequest) handler.Response {
	sess, resp := s.session(req.ID)
	if resp != nil {
		return resp
	}

	tpl, err := s.tpls.GetByID(ctx, req.TemplateID, s.userID)
	if err != nil {
		if errors.Is(err, templates.ErrNotFound) {
			return handler.JSONError(handler.ErrNotFound)
		}
		s.log.ErrorContext(ctx, "failed to load template", logger.Error(err))
		return handler.JSONError(handler.ErrInternal)
	}

	if err := sess.LoadTemplate(ctx, tpl); err != nil {
		return s.flowError(ctx, err)
	}
	return handler.JSON(sess.Snapshot())
}

type setContentRequest struct {
	ID        string `path:"id" json:"-"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Signature string `json:"signature"`
}

func (s *Service) setContent(ctx context.Context, req setContentRequest) handler.Response {
	sess, resp := s.session(req.ID)
	if resp != nil {
		return resp
	}
	if err := sess.SetContent(ctx, Content{
		Subject:   req.Subject,
		Body:      req.Body,
		Signature: req.Signature,
	}); err != nil {
		return s.flowError(ctx, err)
	}
	return handler.JSON(sess.Snapshot())
}

func (s *Service) preview(ctx context.Context, req sessionRequest) handler.Response {
	sess, resp := s.session(req.ID)
	if resp != nil {
		return resp
	}
	blocks, err := sess.Preview(ctx)
	if err != nil {
		return s.flowError(ctx, err)
	}
	return handler.JSON(blocks)
}

func (s *Service) copyText(ctx context.Context, req sessionRequest) handler.Response {
	sess, resp := s.session(req.ID)
	if resp != nil {
		return resp
	}
	text, err := sess.Copy(ctx)
	if err != nil {
		return s.flowError(ctx, err)
	}
	return handler.Text(text)
}

func (s *Service) send(ctx context.Context, req sessionRequest) handler.Response {
	sess, resp := s.session(req.ID)
	if resp != nil {
		return resp
	}

	subject, body, recipientEmail, err := sess.PrepareSend(ctx)
	if err != nil {
		return s.flowError(ctx, err)
	}
	if !email.IsValidAddress(recipientEmail) {
		return handler.JSONError(handler.NewValidationError("recipientEmail", "Recipient has no valid email address"))
	}

	thread, err := s.mailer.SendSingle(ctx, s.userID, subject, body, recipientEmail)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to send composed email", logger.Error(err))
		return handler.JSONError(handler.ErrInternal)
	}

	// The session turns terminal only after the thread is persisted; a
	// failure above leaves it in previewing so the operator can retry.
	if err := sess.ConfirmSend(ctx); err != nil {
		s.log.ErrorContext(ctx, "failed to finalize compose session", logger.Error(err))
	}

	// Delivery is best effort once the thread is persisted.
	if s.sender != nil {
		if err := s.sender.Send(ctx, email.SendParams{
			To:       recipientEmail,
			Subject:  subject,
			BodyHTML: strings.ReplaceAll(body, "\n", "<br />"),
			Tag:      "compose-send",
		}); err != nil {
			s.log.ErrorContext(ctx, "outbound delivery failed", logger.Error(err))
		}
	}

	return handler.JSONWithStatus(thread, http.StatusCreated)
}

// session resolves the path id into a live session or a ready-to-render
// error response. A malformed uuid is indistinguishable from a missing
// session.
func (s *Service) session(raw string) (*Session, handler.Response) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, handler.JSONError(handler.ErrNotFound)
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, handler.JSONError(handler.ErrNotFound)
	}
	return sess, nil
}

// fromDirectory resolves selected directory ids into recipients, preserving
// the selection order.
func (s *Service) fromDirectory(ctx context.Context, ids []int64) ([]placeholder.Recipient, error) {
	entries, err := s.directory.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]directory.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	recipients := make([]placeholder.Recipient, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			return nil, handler.NewValidationError("ids", "Unknown directory entry selected")
		}
		recipients = append(recipients, placeholder.Recipient{
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Company:   e.Company,
			JobTitle:  e.JobTitle,
			Email:     e.Email,
		})
	}
	return recipients, nil
}

// flowError maps session and state machine failures onto HTTP responses:
// guard rejections are forbidden (bulk send, production), missing
// transitions are conflicts (action out of order), input problems are
// validation errors.
func (s *Service) flowError(ctx context.Context, err error) handler.Response {
	switch {
	case statemachine.IsRejected(err):
		return handler.JSONError(handler.ErrForbidden)
	case statemachine.IsNoTransition(err):
		return handler.JSONError(handler.NewHTTPError(http.StatusConflict, "action is not available at this step"))
	case errors.Is(err, ErrInvalidMode):
		return handler.JSONError(handler.NewValidationError("mode", "Mode must be single or bulk"))
	case errors.Is(err, ErrNoRecipients):
		return handler.JSONError(handler.NewValidationError("recipients", "At least one recipient is required"))
	case errors.Is(err, ErrSingleRecipient):
		return handler.JSONError(handler.NewValidationError("recipients", "Single mode accepts exactly one recipient"))
	}

	var valErr handler.ValidationError
	if errors.As(err, &valErr) {
		return handler.JSONError(valErr)
	}

	s.log.ErrorContext(ctx, "compose flow failure", logger.Error(err))
	return handler.JSONError(handler.ErrInternal)
}
