package templates_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailroom/modules/templates"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) List(ctx context.Context, userID int64) ([]templates.Template, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]templates.Template), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStorage) GetByID(ctx context.Context, id, userID int64) (templates.Template, error) {
	args := m.Called(ctx, id, userID)
	return args.Get(0).(templates.Template), args.Error(1)
}

func (m *mockStorage) Create(ctx context.Context, userID int64, name, subject, body string) (templates.Template, error) {
	args := m.Called(ctx, userID, name, subject, body)
	return args.Get(0).(templates.Template), args.Error(1)
}

func (m *mockStorage) Update(ctx context.Context, id, userID int64, name, subject, body string) error {
	return m.Called(ctx, id, userID, name, subject, body).Error(0)
}

func (m *mockStorage) Delete(ctx context.Context, id, userID int64) error {
	return m.Called(ctx, id, userID).Error(0)
}

const userID int64 = 1

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestList(t *testing.T) {
	t.Parallel()

	t.Run("returns templates ordered by storage", func(t *testing.T) {
		t.Parallel()
		storage := new(mockStorage)
		storage.On("List", mock.Anything, userID).Return([]templates.Template{
			{ID: 2, UserID: userID, Name: "Follow-up"},
			{ID: 1, UserID: userID, Name: "Welcome"},
		}, nil)

		rec := doJSON(t, templates.NewService(storage, userID, nil).Handle(), http.MethodGet, "/", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Data []templates.Template `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 2)
		assert.Equal(t, "Follow-up", body.Data[0].Name)
		storage.AssertExpectations(t)
	})

	t.Run("empty list is 200 with empty data", func(t *testing.T) {
		t.Parallel()
		storage := new(mockStorage)
		storage.On("List", mock.Anything, userID).Return([]templates.Template{}, nil)

		rec := doJSON(t, templates.NewService(storage, userID, nil).Handle(), http.MethodGet, "/", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("store failure is opaque 500", func(t *testing.T) {
		t.Parallel()
		storage := new(mockStorage)
		storage.On("List", mock.Anything, userID).Return(nil, templates.ErrStore)

		rec := doJSON(t, templates.NewService(storage, userID, nil).Handle(), http.MethodGet, "/", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "storage failure")
	})
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("creates and returns id", func(t *testing.T) {
		t.Parallel()
		storage := new(mockStorage)
		storage.On("Create", mock.Anything, userID, "Welcome", "Hi {firstName}", "Welcome to {company}!").
			Return(templates.Template{ID: 7, UserID: userID, Name: "Welcome"}, nil)

		rec := doJSON(t, templates.NewService(storage, userID, nil).Handle(), http.MethodPost, "/",
			`{"name":"Welcome","subject":"Hi {firstName}","body":"Welcome to {company}!"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		var body struct {
			Success bool             `json:"success"`
			Data    map[string]int64 `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.EqualValues(t, 7, body.Data["id"])
		storage.AssertExpectations(t)
	})

	t.Run("blank name rejected with 400", func(t *testing.T) {
		t.Parallel()
		storage := new(mockStorage)

		rec := doJSON(t, templates.NewService(storage, userID, nil).Handle(), http.MethodPost, "/",
			`{"name":"   ","subject":"s","body":"b"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		storage.AssertNotCalled(t, "Create")
	})
}

func TestGet(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		storage := new(mockStorage)
		storage.On("GetByID", mock.Anything, int64(3), userID).
			Return(templates.Template{ID: 3, Name: "Welcome", Subject: "Hi"}, nil)

		rec := doJSON(t, templates.NewService(storage, userID, nil).Handle(), http.MethodGet, "/3", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing or foreign-owned is plain 404", func(t *testing.T) {
		t.Parallel()
		storage := new(mockStorage)
		storage.On("GetByID", mock.Anything, int64(9), userID).
			Return(templates.Template{}, templates.ErrNotFound)

		rec := doJSON(t, templates.NewService(storage, userID, nil).Handle(), http.MethodGet, "/9", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotContains(t, rec.Body.String(), "owner")
	})
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	t.Run("full replace", func(t *testing.T) {
		t.Parallel()
		storage := new(mockStorage)
		storage.On("Update", mock.Anything, int64(3), userID, "New name", "New subject", "New body").
			Return(nil)

		rec := doJSON(t, templates.NewService(storage, userID, nil).Handle(), http.MethodPut, "/3",
			`{"name":"New name","subject":"New subject","body":"New body"}`)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		storage.AssertExpectations(t)
	})

	t.Run("missing id is 404", func(t *testing.T) {
		t.Parallel()
		storage := new(mockStorage)
		storage.On("Update", mock.Anything, int64(4), userID, "n", "", "").
			Return(templates.ErrNotFound)

		rec := doJSON(t, templates.NewService(storage, userID, nil).Handle(), http.MethodPut, "/4",
			`{"name":"n"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDelete(t *testing.T) {
	t.Parallel()

	t.Run("idempotent delete always succeeds", func(t *testing.T) {
		t.Parallel()
		storage := new(mockStorage)
		storage.On("Delete", mock.Anything, int64(5), userID).Return(nil)

		rec := doJSON(t, templates.NewService(storage, userID, nil).Handle(), http.MethodDelete, "/5", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("store failure surfaces as 500", func(t *testing.T) {
		t.Parallel()
		storage := new(mockStorage)
		storage.On("Delete", mock.Anything, int64(5), userID).
			Return(errors.Join(templates.ErrStore, errors.New("connection reset")))

		rec := doJSON(t, templates.NewService(storage, userID, nil).Handle(), http.MethodDelete, "/5", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection reset")
	})
}
