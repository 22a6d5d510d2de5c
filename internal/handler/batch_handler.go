package handler

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/extraction-orchestrator/internal/dataset"
	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"github.com/kursadbilgin/extraction-orchestrator/internal/service"
)

const (
	uploadField         = "files"
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type BatchService interface {
	Submit(ctx context.Context, docs []domain.Document) (string, error)
	Reset()
	View() service.View
	History(ctx context.Context, limit int) ([]domain.BatchRun, error)
	ExportURL() (string, error)
}

type DatasetPresenter interface {
	View() dataset.View
	Toggle(key string) error
	ToggleAll()
}

type BatchHandler struct {
	service   BatchService
	presenter DatasetPresenter
}

func NewBatchHandler(service BatchService, presenter DatasetPresenter) (*BatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	if presenter == nil {
		return nil, fmt.Errorf("dataset presenter is required")
	}
	return &BatchHandler{service: service, presenter: presenter}, nil
}

// RegisterBatchRoutes mounts the batch and dataset routes on router, which
// is expected to be the /v1 group.
func RegisterBatchRoutes(router fiber.Router, service BatchService, presenter DatasetPresenter) error {
	h, err := NewBatchHandler(service, presenter)
	if err != nil {
		return err
	}

	router.Post("/batches", h.SubmitBatch)
	router.Get("/batches/current", h.CurrentBatch)
	router.Delete("/batches/current", h.ResetBatch)
	router.Get("/batches/history", h.History)
	router.Get("/dataset", h.Dataset)
	router.Post("/dataset/selection", h.ToggleAll)
	router.Post("/dataset/selection/:key", h.ToggleGroup)
	router.Get("/dataset/export", h.Export)

	return nil
}

type submitBatchResponse struct {
	BatchID string `json:"batchId"`
}

type batchRunResponse struct {
	ID            string     `json:"id"`
	RemoteBatchID *string    `json:"remoteBatchId,omitempty"`
	FileCount     int        `json:"fileCount"`
	Completed     int        `json:"completed"`
	Errored       int        `json:"errored"`
	RecordCount   int        `json:"recordCount"`
	Outcome       string     `json:"outcome"`
	FailureKind   *string    `json:"failureKind,omitempty"`
	FailureReason *string    `json:"failureReason,omitempty"`
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
}

type historyResponse struct {
	Data []batchRunResponse `json:"data"`
}

func (h *BatchHandler) SubmitBatch(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart body with field \"files\" is required")
	}

	headers := form.File[uploadField]
	if len(headers) == 0 {
		return toHTTPError(fmt.Errorf("%w: at least one file is required", domain.ErrValidation))
	}

	docs := make([]domain.Document, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("failed to read %s", fh.Filename))
		}
		files = append(files, f)
		docs = append(docs, domain.Document{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Content:     f,
		})
	}

	batchID, err := h.service.Submit(c.UserContext(), docs)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(submitBatchResponse{BatchID: batchID})
}

func (h *BatchHandler) CurrentBatch(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.service.View())
}

func (h *BatchHandler) ResetBatch(c *fiber.Ctx) error {
	h.service.Reset()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BatchHandler) History(c *fiber.Ctx) error {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		return toHTTPError(err)
	}

	runs, err := h.service.History(c.UserContext(), limit)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]batchRunResponse, 0, len(runs))
	for _, run := range runs {
		data = append(data, toBatchRunResponse(run))
	}
	return c.Status(fiber.StatusOK).JSON(historyResponse{Data: data})
}

func (h *BatchHandler) Dataset(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.presenter.View())
}

func (h *BatchHandler) ToggleGroup(c *fiber.Ctx) error {
	key := c.Params("key")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	if key == "" {
		return toHTTPError(fmt.Errorf("%w: group key is required", domain.ErrValidation))
	}
	if err := h.presenter.Toggle(key); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(h.presenter.View())
}

func (h *BatchHandler) ToggleAll(c *fiber.Ctx) error {
	h.presenter.ToggleAll()
	return c.Status(fiber.StatusOK).JSON(h.presenter.View())
}

func (h *BatchHandler) Export(c *fiber.Ctx) error {
	location, err := h.service.ExportURL()
	if err != nil {
		return toHTTPError(err)
	}
	return c.Redirect(location, fiber.StatusFound)
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", domain.ErrValidation)
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, nil
}

func toBatchRunResponse(run domain.BatchRun) batchRunResponse {
	return batchRunResponse{
		ID:            run.ID,
		RemoteBatchID: run.RemoteBatchID,
		FileCount:     run.FileCount,
		Completed:     run.Completed,
		Errored:       run.Errored,
		RecordCount:   run.RecordCount,
		Outcome:       run.Outcome.String(),
		FailureKind:   run.FailureKind,
		FailureReason: run.FailureReason,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	}
}
