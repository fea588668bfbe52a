package persistence

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/profile/models"
	"onboard/internal/upload"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/platform/retry"
	"onboard/pkg/platform/sentinel"
)

func newClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL,
		WithTokenSource(StaticToken("tok-123")),
		WithRetryPolicy(retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}),
	)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("not a url")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestLoadProfile(t *testing.T) {
	t.Run("returns stored draft", func(t *testing.T) {
		stored := models.NewDefaultDraft(models.CategoryHospital)
		stored.Identity.Name = "St. Mary"
		c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/profile", r.URL.Path)
			assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
			httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": stored})
		}))

		draft, err := c.LoadProfile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "St. Mary", draft.Identity.Name)
		assert.Len(t, draft.Documents, 21)
	})

	t.Run("not found is not retried", func(t *testing.T) {
		var calls atomic.Int32
		c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "profile not found"))
		}))

		_, err := c.LoadProfile(context.Background())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("transient failures are retried", func(t *testing.T) {
		var calls atomic.Int32
		c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": models.NewDefaultDraft(models.CategoryBloodBank)})
		}))

		draft, err := c.LoadProfile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.CategoryBloodBank, draft.Category)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("unauthorized is permanent", func(t *testing.T) {
		var calls atomic.Int32
		c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token expired"))
		}))

		_, err := c.LoadProfile(context.Background())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestSaveProgress(t *testing.T) {
	var got models.ProfileDraft
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile/complete", r.URL.Path)
		assert.Equal(t, "progress", r.URL.Query().Get("mode"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "saved"})
	}))

	draft := models.NewDefaultDraft(models.CategoryHospital)
	draft.Location.City = "Springfield"
	require.NoError(t, c.SaveProgress(context.Background(), draft))
	assert.Equal(t, "Springfield", got.Location.City)
}

func TestSaveProgress_ServerError(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database down", http.StatusServiceUnavailable)
	}))
	err := c.SaveProgress(context.Background(), models.NewDefaultDraft(models.CategoryHospital))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "database down")
}

func TestCompleteProfile(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.RawQuery)
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "completed"})
		}))
		assert.NoError(t, c.CompleteProfile(context.Background(), models.NewDefaultDraft(models.CategoryHospital)))
	})

	t.Run("rejection becomes CompleteFailure", func(t *testing.T) {
		c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{
				Error:            "validation_failed",
				ErrorDescription: "profile incomplete",
				Missing:          []string{"documents.staffing", "identity.name"},
			})
		}))

		err := c.CompleteProfile(context.Background(), models.NewDefaultDraft(models.CategoryHospital))
		var failure *models.CompleteFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, []models.FieldRef{models.DocumentRef("staffing"), models.RefName}, failure.Missing)
		assert.Equal(t, "profile incomplete", failure.Reason)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestUploadDocument(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload-document", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "license", r.FormValue("type"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "%PDF-1.7", string(content))
		assert.Equal(t, "license.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"message":  "Document uploaded successfully",
			"fileUrl":  "https://files.example/license",
			"fileName": header.Filename,
		})
	}))

	res, err := c.UploadDocument(context.Background(), "license", upload.File{
		Name: "license.pdf", ContentType: "application/pdf", Size: 8, Body: strings.NewReader("%PDF-1.7"),
	})
	require.NoError(t, err)
	assert.Equal(t, upload.Result{FileURL: "https://files.example/license", FileName: "license.pdf"}, res)
}

func TestUploadDocument_Rejected(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeFileRejected, "unsupported file type"))
	}))
	_, err := c.UploadDocument(context.Background(), "license", upload.File{
		Name: "a.exe", ContentType: "application/octet-stream", Size: 1, Body: strings.NewReader("x"),
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}
