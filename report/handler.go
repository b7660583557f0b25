package report

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Matias-Artesi/odoo-attain/internal/ar"
	"github.com/Matias-Artesi/odoo-attain/internal/platform/httpx"
)

// Handler serves invoice PDF downloads.
type Handler struct {
	invoices *ar.Service
	renderer *Renderer
	client   *Client
	logger   *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(invoices *ar.Service, renderer *Renderer, client *Client, logger *slog.Logger) *Handler {
	return &Handler{invoices: invoices, renderer: renderer, client: client, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/invoices/{invoiceID}/pdf", h.invoicePDF)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid invoice id", err.Error())
		return
	}

	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ar.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}

	pdf, err := h.renderer.RenderInvoice(r.Context(), inv)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.Int64("invoice_id", id), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+BaseFilename(inv)+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
