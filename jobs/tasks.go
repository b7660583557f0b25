package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Matias-Artesi/odoo-attain/internal/importer"
	jobmetrics "github.com/Matias-Artesi/odoo-attain/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSalesImport runs a spreadsheet import in the background.
	TaskSalesImport = "sales:import"
)

// SalesImportPayload carries one queued import: the raw workbook plus the
// options the caller submitted.
type SalesImportPayload struct {
	File    []byte           `json:"file"`
	Options importer.Options `json:"options"`
}

// NewSalesImportTask constructs an Asynq task.
func NewSalesImportTask(payload SalesImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSalesImport, data), nil
}

// SalesImportProcessor runs queued imports against the import pipeline.
type SalesImportProcessor struct {
	service *importer.Service
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewSalesImportProcessor wires the processor.
func NewSalesImportProcessor(service *importer.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) *SalesImportProcessor {
	return &SalesImportProcessor{service: service, metrics: metrics, logger: logger}
}

// Handle processes TaskSalesImport tasks. Unusable payloads and unreadable
// workbooks skip retry: requeueing cannot fix either.
func (p *SalesImportProcessor) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SalesImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := p.metrics.Track(TaskSalesImport)
	res, err := p.service.Run(ctx, payload.File, payload.Options)
	if err != nil {
		p.logger.Error("queued import failed", slog.Any("error", err))
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	_ = tracker.End(nil)

	p.metrics.AddOrders("created", res.OrdersCreated)
	p.metrics.AddOrders("rejected", res.GroupsDetected-res.OrdersCreated)
	p.logger.Info("queued import finished",
		slog.String("run_id", res.RunID),
		slog.Int("groups", res.GroupsDetected),
		slog.Int("created", res.OrdersCreated),
		slog.Bool("aborted", res.Aborted))
	return nil
}
