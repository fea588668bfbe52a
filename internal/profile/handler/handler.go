package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboard/internal/platform/metrics"
	"onboard/internal/platform/middleware"
	"onboard/internal/profile/models"
	"onboard/internal/upload"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
)

const (
	// multipart overhead allowed on top of the file limit
	formOverhead    = 1 << 20
	formMemoryLimit = 1 << 20
)

// Service defines the profile operations the HTTP layer needs.
type Service interface {
	Load(ctx context.Context, orgID id.OrgID, category models.Category) (*models.ProfileDraft, error)
	SaveProgress(ctx context.Context, orgID id.OrgID, category models.Category, d *models.ProfileDraft) error
	Complete(ctx context.Context, orgID id.OrgID, category models.Category, d *models.ProfileDraft) (*models.ProfileDraft, error)
	UploadDocument(ctx context.Context, orgID id.OrgID, category models.Category, t models.DocumentType, f upload.File) (upload.Result, error)
	DocumentURL(ctx context.Context, orgID id.OrgID, category models.Category, t models.DocumentType) (string, error)
	Completion(ctx context.Context, orgID id.OrgID, category models.Category) (models.CompletionSummary, error)
}

// Handler serves the profile API for the organization named by the caller's
// token.
type Handler struct {
	logger       *slog.Logger
	profiles     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
	uploadLimit  func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithUploadLimit wraps the upload route, typically with a per-organization
// rate limiter.
func WithUploadLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.uploadLimit = mw
	}
}

func New(
	profiles Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	opts ...Option) *Handler {
	h := &Handler{
		logger:       logger,
		profiles:     profiles,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the profile routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.metrics != nil {
			r.Use(h.metrics.Instrument)
		}
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Get("/profile", h.handleGetProfile)
		r.Get("/profile/completion", h.handleGetCompletion)
		r.Post("/profile/complete", h.handleCompleteProfile)
		if h.uploadLimit != nil {
			r.With(h.uploadLimit).Post("/upload-document", h.handleUploadDocument)
		} else {
			r.Post("/upload-document", h.handleUploadDocument)
		}
		r.Get("/documents/{type}", h.handleGetDocument)
	})
}

type dataResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type uploadResponse struct {
	Message  string `json:"message"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
}

// organization reads the org and category the auth middleware put on ctx.
func (h *Handler) organization(ctx context.Context) (id.OrgID, models.Category, error) {
	orgID, err := id.ParseOrgID(middleware.GetOrgID(ctx))
	if err != nil {
		return id.OrgID{}, "", dErrors.Wrap(err, dErrors.CodeForbidden, "token carries an invalid organization")
	}
	category, err := models.ParseCategory(middleware.GetCategory(ctx))
	if err != nil {
		return id.OrgID{}, "", dErrors.Wrap(err, dErrors.CodeForbidden, "token carries an unsupported category")
	}
	return orgID, category, nil
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, category, err := h.organization(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	draft, err := h.profiles.Load(ctx, orgID, category)
	if err != nil {
		h.logFailure(ctx, "failed to load profile", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dataResponse{Data: draft})
}

func (h *Handler) handleGetCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, category, err := h.organization(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.profiles.Completion(ctx, orgID, category)
	if err != nil {
		h.logFailure(ctx, "failed to compute profile completion", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dataResponse{Data: summary})
}

func (h *Handler) handleCompleteProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, category, err := h.organization(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var draft models.ProfileDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.logger.WarnContext(ctx, "invalid profile body",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if r.URL.Query().Get("mode") == "progress" {
		if err := h.profiles.SaveProgress(ctx, orgID, category, &draft); err != nil {
			h.logFailure(ctx, "failed to save progress", err)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, dataResponse{Message: "Progress saved"})
		return
	}

	done, err := h.profiles.Complete(ctx, orgID, category, &draft)
	if err != nil {
		h.logFailure(ctx, "failed to complete profile", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dataResponse{Message: "Profile completed successfully", Data: done})
}

func (h *Handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, category, err := h.organization(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxFileSize+formOverhead)
	if err := r.ParseMultipartForm(formMemoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, &models.FileRejected{Reason: models.RejectTooLarge, Size: r.ContentLength})
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	docType := models.DocumentType(r.FormValue("type"))
	if docType == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "document type is required"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file is required"))
		return
	}
	defer file.Close()

	res, err := h.profiles.UploadDocument(ctx, orgID, category, docType, upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.logFailure(ctx, "failed to upload document", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, uploadResponse{
		Message:  "Document uploaded successfully",
		FileURL:  res.FileURL,
		FileName: res.FileName,
	})
}

// handleGetDocument redirects to a short-lived download link.
func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, category, err := h.organization(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	link, err := h.profiles.DocumentURL(ctx, orgID, category, models.DocumentType(chi.URLParam(r, "type")))
	if err != nil {
		h.logFailure(ctx, "failed to resolve document", err)
		httputil.WriteError(w, err)
		return
	}
	http.Redirect(w, r, link, http.StatusFound)
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	attrs := []any{
		"request_id", middleware.GetRequestID(ctx),
		"org_id", middleware.GetOrgID(ctx),
		"error", err.Error(),
	}
	if httputil.StatusFor(dErrors.CodeOf(err)) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, msg, attrs...)
		return
	}
	h.logger.ErrorContext(ctx, msg, attrs...)
}
