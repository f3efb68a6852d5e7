package compose_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailroom/modules/compose"
	"github.com/dmitrymomot/mailroom/modules/directory"
	"github.com/dmitrymomot/mailroom/modules/mailbox"
	"github.com/dmitrymomot/mailroom/modules/templates"
	"github.com/dmitrymomot/mailroom/pkg/email"
	"github.com/dmitrymomot/mailroom/pkg/environment"
)

type mockTemplates struct {
	mock.Mock
}

func (m *mockTemplates) GetByID(ctx context.Context, id, userID int64) (templates.Template, error) {
	args := m.Called(ctx, id, userID)
	return args.Get(0).(templates.Template), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) List(ctx context.Context) ([]directory.Entry, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]directory.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) SendSingle(ctx context.Context, senderID int64, subject, body, recipientEmail string) (mailbox.Thread, error) {
	args := m.Called(ctx, senderID, subject, body, recipientEmail)
	return args.Get(0).(mailbox.Thread), args.Error(1)
}

type recordingSender struct {
	sent []email.SendParams
}

func (r *recordingSender) Send(_ context.Context, params email.SendParams) error {
	r.sent = append(r.sent, params)
	return nil
}

const userID int64 = 1

type fixture struct {
	svc    *compose.Service
	h      http.Handler
	tpls   *mockTemplates
	dir    *mockDirectory
	mailer *mockDispatcher
	sender *recordingSender
	env    environment.Environment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tpls:   new(mockTemplates),
		dir:    new(mockDirectory),
		mailer: new(mockDispatcher),
		sender: &recordingSender{},
		env:    environment.Development,
	}
	f.svc = compose.NewService(compose.NewRegistry(time.Minute), f.tpls, f.dir, f.mailer, f.sender, userID, nil)
	f.h = f.svc.Handle()
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req = req.WithContext(environment.WithContext(req.Context(), f.env))
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doJSON(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	ct := ""
	if body != "" {
		r = strings.NewReader(body)
		ct = "application/json"
	}
	return f.do(t, method, target, r, ct)
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) compose.Snapshot {
	t.Helper()
	var body struct {
		Data compose.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

// startSessionHTTP drives a session to the editing state over the API.
func (f *fixture) startSessionHTTP(t *testing.T, mode string, recipientsJSON string) string {
	t.Helper()
	rec := f.doJSON(t, http.MethodPost, "/", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeSnapshot(t, rec).ID.String()

	rec = f.doJSON(t, http.MethodPost, "/"+id+"/mode", `{"mode":"`+mode+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.doJSON(t, http.MethodPost, "/"+id+"/recipients",
		`{"source":"manual","recipients":`+recipientsJSON+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	return id
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("create returns initial state", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.doJSON(t, http.MethodPost, "/", "")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, string(compose.StateChoosingMode), decodeSnapshot(t, rec).State)
	})

	t.Run("unknown session is 404", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.doJSON(t, http.MethodGet, "/8f9f2c60-0000-4000-8000-000000000000", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id is 404", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.doJSON(t, http.MethodGet, "/not-a-uuid", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete then get is 404", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := decodeSnapshot(t, f.doJSON(t, http.MethodPost, "/", "")).ID.String()

		rec := f.doJSON(t, http.MethodDelete, "/"+id, "")
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.doJSON(t, http.MethodGet, "/"+id, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRecipientsFromDirectory(t *testing.T) {
	t.Parallel()

	t.Run("selection order preserved", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.dir.On("List", mock.Anything).Return([]directory.Entry{
			{ID: 1, FirstName: "Ana", Company: "Acme", Email: "ana@acme.com"},
			{ID: 2, FirstName: "Bo", Company: "Globex", Email: "bo@globex.com"},
		}, nil)

		id := decodeSnapshot(t, f.doJSON(t, http.MethodPost, "/", "")).ID.String()
		f.doJSON(t, http.MethodPost, "/"+id+"/mode", `{"mode":"bulk"}`)

		rec := f.doJSON(t, http.MethodPost, "/"+id+"/recipients", `{"source":"directory","ids":[2,1]}`)
		require.Equal(t, http.StatusOK, rec.Code)

		snap := decodeSnapshot(t, rec)
		require.Len(t, snap.Recipients, 2)
		assert.Equal(t, "Bo", snap.Recipients[0].FirstName)
		assert.Equal(t, "Ana", snap.Recipients[1].FirstName)
	})

	t.Run("unknown directory id is 400", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.dir.On("List", mock.Anything).Return([]directory.Entry{{ID: 1}}, nil)

		id := decodeSnapshot(t, f.doJSON(t, http.MethodPost, "/", "")).ID.String()
		f.doJSON(t, http.MethodPost, "/"+id+"/mode", `{"mode":"bulk"}`)

		rec := f.doJSON(t, http.MethodPost, "/"+id+"/recipients", `{"source":"directory","ids":[99]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown source is 400", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := decodeSnapshot(t, f.doJSON(t, http.MethodPost, "/", "")).ID.String()
		f.doJSON(t, http.MethodPost, "/"+id+"/mode", `{"mode":"bulk"}`)

		rec := f.doJSON(t, http.MethodPost, "/"+id+"/recipients", `{"source":"carrier-pigeon"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRecipientsUpload(t *testing.T) {
	t.Parallel()

	upload := func(t *testing.T, f *fixture, id, filename, content string) *httptest.ResponseRecorder {
		t.Helper()
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		return f.do(t, http.MethodPost, "/"+id+"/recipients/upload", &buf, w.FormDataContentType())
	}

	t.Run("csv rows become recipients", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := decodeSnapshot(t, f.doJSON(t, http.MethodPost, "/", "")).ID.String()
		f.doJSON(t, http.MethodPost, "/"+id+"/mode", `{"mode":"bulk"}`)

		rec := upload(t, f, id, "leads.csv", "first_name,company\nAna,Acme\nBo,Globex\n")
		require.Equal(t, http.StatusOK, rec.Code)

		snap := decodeSnapshot(t, rec)
		require.Len(t, snap.Recipients, 2)
		assert.Equal(t, "Ana", snap.Recipients[0].FirstName)
		assert.Equal(t, "Globex", snap.Recipients[1].Company)
	})

	t.Run("unsupported extension is 400", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := decodeSnapshot(t, f.doJSON(t, http.MethodPost, "/", "")).ID.String()
		f.doJSON(t, http.MethodPost, "/"+id+"/mode", `{"mode":"bulk"}`)

		rec := upload(t, f, id, "leads.pdf", "whatever")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file part is 400", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := decodeSnapshot(t, f.doJSON(t, http.MethodPost, "/", "")).ID.String()
		f.doJSON(t, http.MethodPost, "/"+id+"/mode", `{"mode":"bulk"}`)

		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.Close())
		rec := f.do(t, http.MethodPost, "/"+id+"/recipients/upload", &buf, w.FormDataContentType())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTemplateIntoDraft(t *testing.T) {
	t.Parallel()

	t.Run("loads subject and body", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.tpls.On("GetByID", mock.Anything, int64(7), userID).Return(templates.Template{
			ID: 7, Subject: "Hi {firstName}", Body: "Welcome to {company}!",
		}, nil)

		id := f.startSessionHTTP(t, "single", `[{"firstName":"Ana","company":"Acme"}]`)
		rec := f.doJSON(t, http.MethodPost, "/"+id+"/template", `{"templateId":7}`)
		require.Equal(t, http.StatusOK, rec.Code)

		content := decodeSnapshot(t, rec).Content
		assert.Equal(t, "Hi {firstName}", content.Subject)
		assert.Equal(t, "Welcome to {company}!", content.Body)
	})

	t.Run("missing template is 404", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.tpls.On("GetByID", mock.Anything, int64(99), userID).
			Return(templates.Template{}, templates.ErrNotFound)

		id := f.startSessionHTTP(t, "single", `[{"firstName":"Ana"}]`)
		rec := f.doJSON(t, http.MethodPost, "/"+id+"/template", `{"templateId":99}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPreviewAndCopy(t *testing.T) {
	t.Parallel()

	t.Run("preview before recipients is 409", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := decodeSnapshot(t, f.doJSON(t, http.MethodPost, "/", "")).ID.String()

		rec := f.doJSON(t, http.MethodGet, "/"+id+"/preview", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("copy returns plain text", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := f.startSessionHTTP(t, "single", `[{"firstName":"Ana","company":"Acme"}]`)
		f.doJSON(t, http.MethodPut, "/"+id+"/content",
			`{"subject":"Hi {firstName}","body":"Welcome to {company}!","signature":"Me"}`)
		require.Equal(t, http.StatusOK, f.doJSON(t, http.MethodGet, "/"+id+"/preview", "").Code)

		rec := f.doJSON(t, http.MethodPost, "/"+id+"/copy", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
		assert.Equal(t, "Hi Ana\n\nWelcome to Acme!\n\nMe", rec.Body.String())
	})
}

func TestComposeSend(t *testing.T) {
	t.Parallel()

	prepare := func(t *testing.T, f *fixture) string {
		t.Helper()
		id := f.startSessionHTTP(t, "single", `[{"firstName":"Ana","company":"Acme","email":"ana@acme.com"}]`)
		f.doJSON(t, http.MethodPut, "/"+id+"/content",
			`{"subject":"Hi {firstName}","body":"Welcome to {company}!","signature":"Me"}`)
		require.Equal(t, http.StatusOK, f.doJSON(t, http.MethodGet, "/"+id+"/preview", "").Code)
		return id
	}

	t.Run("persists and dispatches rendered email", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.mailer.On("SendSingle", mock.Anything, userID,
			"Hi Ana", "Welcome to Acme!\n\nMe", "ana@acme.com").
			Return(mailbox.Thread{ID: 11, Subject: "Hi Ana"}, nil)

		id := prepare(t, f)
		rec := f.doJSON(t, http.MethodPost, "/"+id+"/send", "")

		require.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, f.sender.sent, 1)
		assert.Equal(t, "ana@acme.com", f.sender.sent[0].To)
		f.mailer.AssertExpectations(t)
	})

	t.Run("failed persistence keeps the session retryable", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.mailer.On("SendSingle", mock.Anything, userID,
			"Hi Ana", "Welcome to Acme!\n\nMe", "ana@acme.com").
			Return(mailbox.Thread{}, errors.New("connection reset")).Once()
		f.mailer.On("SendSingle", mock.Anything, userID,
			"Hi Ana", "Welcome to Acme!\n\nMe", "ana@acme.com").
			Return(mailbox.Thread{ID: 12}, nil).Once()

		id := prepare(t, f)
		rec := f.doJSON(t, http.MethodPost, "/"+id+"/send", "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		snap := decodeSnapshot(t, f.doJSON(t, http.MethodGet, "/"+id, ""))
		require.Equal(t, string(compose.StatePreviewing), snap.State)

		rec = f.doJSON(t, http.MethodPost, "/"+id+"/send", "")
		assert.Equal(t, http.StatusCreated, rec.Code)
		f.mailer.AssertExpectations(t)
	})

	t.Run("failed send still allows editing", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.mailer.On("SendSingle", mock.Anything, userID,
			"Hi Ana", "Welcome to Acme!\n\nMe", "ana@acme.com").
			Return(mailbox.Thread{}, errors.New("connection reset"))

		id := prepare(t, f)
		require.Equal(t, http.StatusInternalServerError,
			f.doJSON(t, http.MethodPost, "/"+id+"/send", "").Code)

		rec := f.doJSON(t, http.MethodPut, "/"+id+"/content", `{"subject":"S","body":"B"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejected in production", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := prepare(t, f)

		f.env = environment.Production
		rec := f.doJSON(t, http.MethodPost, "/"+id+"/send", "")

		assert.Equal(t, http.StatusForbidden, rec.Code)
		f.mailer.AssertNotCalled(t, "SendSingle")
	})

	t.Run("rejected in bulk mode", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := f.startSessionHTTP(t, "bulk", `[{"firstName":"Ana","email":"a@b.co"},{"firstName":"Bo","email":"b@b.co"}]`)
		f.doJSON(t, http.MethodPut, "/"+id+"/content", `{"subject":"S","body":"B"}`)
		require.Equal(t, http.StatusOK, f.doJSON(t, http.MethodGet, "/"+id+"/preview", "").Code)

		rec := f.doJSON(t, http.MethodPost, "/"+id+"/send", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("recipient without email is 400", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := f.startSessionHTTP(t, "single", `[{"firstName":"Ana"}]`)
		f.doJSON(t, http.MethodPut, "/"+id+"/content", `{"subject":"S","body":"B"}`)
		require.Equal(t, http.StatusOK, f.doJSON(t, http.MethodGet, "/"+id+"/preview", "").Code)

		rec := f.doJSON(t, http.MethodPost, "/"+id+"/send", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		snap := decodeSnapshot(t, f.doJSON(t, http.MethodGet, "/"+id, ""))
		assert.Equal(t, string(compose.StatePreviewing), snap.State)
	})
}
