package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Matias-Artesi/odoo-attain/internal/platform/httpx"
	"github.com/Matias-Artesi/odoo-attain/internal/shared"
)

// Enqueuer hands an import off to the background queue instead of running it
// inside the request.
type Enqueuer interface {
	EnqueueImport(ctx context.Context, file []byte, opts Options) (string, error)
}

// HandlerConfig carries the request-independent defaults of the endpoint.
type HandlerConfig struct {
	MaxUploadBytes    int64
	Sheet             string
	ServiceProductRef string
	TrackedLines      TrackedLinePolicy
}

// Handler exposes the import pipeline over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	enqueue Enqueuer
	idem    *shared.IdempotencyStore
	cfg     HandlerConfig
}

// NewHandler creates the import handler. enqueue and idem are optional; the
// matching endpoints report failure when they are absent.
func NewHandler(logger *slog.Logger, service *Service, enqueue Enqueuer, idem *shared.IdempotencyStore, cfg HandlerConfig) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Handler{logger: logger, service: service, enqueue: enqueue, idem: idem, cfg: cfg}
}

// MountRoutes registers import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.run)
	r.Post("/queue", h.queue)
	r.Get("/{runID}", h.result)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), key, "sales_import"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate import", "this spreadsheet was already submitted")
				return
			}
			h.logger.Error("idempotency check failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
	}

	file, opts, ok := h.parseUpload(w, r)
	if !ok {
		h.releaseKey(r.Context(), key)
		return
	}

	res, err := h.service.Run(r.Context(), file, opts)
	if err != nil {
		h.releaseKey(r.Context(), key)
		h.respondRunError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) queue(w http.ResponseWriter, r *http.Request) {
	if h.enqueue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue unavailable", "background imports are not configured")
		return
	}

	file, opts, ok := h.parseUpload(w, r)
	if !ok {
		return
	}

	taskID, err := h.enqueue.EnqueueImport(r.Context(), file, opts)
	if err != nil {
		h.logger.Error("enqueue import failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	res, err := h.service.Result(r.Context(), runID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no import run with id "+runID)
			return
		}
		h.logger.Error("load import result", slog.String("run_id", runID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// parseUpload reads the multipart body into file bytes plus run options. It
// writes the error response itself and returns ok=false when parsing failed.
func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) ([]byte, Options, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid upload", err.Error())
		return nil, Options{}, false
	}

	src, _, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid upload", "multipart field \"file\" is required")
		return nil, Options{}, false
	}
	defer func() {
		_ = src.Close()
	}()
	file, err := io.ReadAll(src)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid upload", err.Error())
		return nil, Options{}, false
	}

	opts := Options{
		Simulate:          formBool(r, "simulate"),
		ValidateInvoice:   formBool(r, "validate_invoice"),
		BestEffort:        formBool(r, "best_effort"),
		ServiceProductRef: h.cfg.ServiceProductRef,
		TrackedLines:      h.cfg.TrackedLines,
		Sheet:             h.cfg.Sheet,
	}
	if v := r.FormValue("service_product_ref"); v != "" {
		opts.ServiceProductRef = v
	}
	if v := r.FormValue("tracked_lines"); v != "" {
		opts.TrackedLines = TrackedLinePolicy(v)
	}
	if v := r.FormValue("sheet"); v != "" {
		opts.Sheet = v
	}

	if cols, _, err := r.FormFile("columns"); err == nil {
		defer func() {
			_ = cols.Close()
		}()
		data, err := io.ReadAll(cols)
		if err == nil {
			opts.Columns, err = ParseColumnMap(data)
		}
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid column map", err.Error())
			return nil, Options{}, false
		}
	}

	return file, opts, true
}

func (h *Handler) respondRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnreadableFile), errors.Is(err, ErrMissingColumns):
		httpx.Problem(w, http.StatusBadRequest, "Unusable spreadsheet", err.Error())
	default:
		h.logger.Error("import run failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// releaseKey frees an idempotency key after a run that persisted nothing, so
// the caller can retry with the same key.
func (h *Handler) releaseKey(ctx context.Context, key string) {
	if key == "" || h.idem == nil {
		return
	}
	if err := h.idem.Delete(ctx, key); err != nil {
		h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func formBool(r *http.Request, field string) bool {
	v, err := strconv.ParseBool(r.FormValue(field))
	return err == nil && v
}
