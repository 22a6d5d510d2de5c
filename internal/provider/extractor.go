package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	uploadFieldName = "files"
	payeesQueryKey  = "titulares"

	endpointUpload      = "upload"
	endpointBatchStatus = "batch_status"
	endpointJobData     = "job_data"
	endpointExport      = "export"
	endpointLiberar     = "liberar"
)

type skipUnauthorizedKey struct{}

// ExtractorConfig locates the backend. A zero Timeout leaves calls unbounded.
type ExtractorConfig struct {
	ExtractorURL  string
	BackendURL    string
	Timeout       time.Duration
	SessionCookie *http.Cookie
}

// HTTPExtractor talks to the extraction service and the access validation
// endpoint over one cookie-carrying client. Every 401/403 it sees, except
// from Liberar, is reported to the notifier.
type HTTPExtractor struct {
	client       *resty.Client
	extractorURL string
	backendURL   string
	notifier     UnauthorizedNotifier
	metrics      *observability.Metrics
	logger       *zap.Logger
}

func NewHTTPExtractor(cfg ExtractorConfig, notifier UnauthorizedNotifier, metrics *observability.Metrics, logger *zap.Logger) (*HTTPExtractor, error) {
	return NewHTTPExtractorWithClient(cfg, resty.New(), notifier, metrics, logger)
}

func NewHTTPExtractorWithClient(cfg ExtractorConfig, client *resty.Client, notifier UnauthorizedNotifier, metrics *observability.Metrics, logger *zap.Logger) (*HTTPExtractor, error) {
	extractorURL, err := normalizeBaseURL(cfg.ExtractorURL)
	if err != nil {
		return nil, fmt.Errorf("invalid extractor url: %w", err)
	}
	backendURL, err := normalizeBaseURL(cfg.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	client.SetRetryCount(0)
	if cfg.SessionCookie != nil {
		client.SetCookie(cfg.SessionCookie)
	}

	e := &HTTPExtractor{
		client:       client,
		extractorURL: extractorURL,
		backendURL:   backendURL,
		notifier:     notifier,
		metrics:      metrics,
		logger:       logger,
	}

	client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if r.Header.Get(requestIDHeader) == "" {
			r.SetHeader(requestIDHeader, requestID(r.Context()))
		}
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if resp == nil || !isUnauthorizedStatus(resp.StatusCode()) {
			return nil
		}
		e.reportUnauthorized(resp.Request.Context(), resp.StatusCode())
		return nil
	})

	return e, nil
}

func (e *HTTPExtractor) Upload(ctx context.Context, docs []domain.Document) (string, error) {
	if err := domain.ValidateDocuments(docs); err != nil {
		return "", err
	}

	fields := make([]*resty.MultipartField, 0, len(docs))
	for _, doc := range docs {
		contentType := strings.TrimSpace(doc.ContentType)
		if contentType == "" {
			contentType = domain.ContentTypePDF
		}
		fields = append(fields, &resty.MultipartField{
			Param:       uploadFieldName,
			FileName:    doc.Filename,
			ContentType: contentType,
			Reader:      doc.Content,
		})
	}

	resp, err := e.do(ctx, endpointUpload, func(r *resty.Request) (*resty.Response, error) {
		return r.SetMultipartFields(fields...).Post(e.extractorURL + "/upload")
	})
	if err != nil {
		return "", err
	}

	var out struct {
		BatchID string `json:"batch_id"`
	}
	if err := decode(endpointUpload, resp, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.BatchID) == "" {
		return "", &ProviderError{Endpoint: endpointUpload, StatusCode: resp.StatusCode(), Message: "response has no batch_id"}
	}

	return out.BatchID, nil
}

func (e *HTTPExtractor) BatchStatus(ctx context.Context, batchID string) (domain.Batch, error) {
	if strings.TrimSpace(batchID) == "" {
		return domain.Batch{}, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	resp, err := e.do(observability.WithBatchID(ctx, batchID), endpointBatchStatus, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(e.extractorURL + "/batch/" + url.PathEscape(batchID))
	})
	if err != nil {
		return domain.Batch{}, err
	}

	var batch domain.Batch
	if err := decode(endpointBatchStatus, resp, &batch); err != nil {
		return domain.Batch{}, err
	}
	if batch.ID == "" {
		batch.ID = batchID
	}
	return batch, nil
}

func (e *HTTPExtractor) JobRecords(ctx context.Context, jobID string) ([]domain.ExtractedRecord, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("%w: job id is required", domain.ErrValidation)
	}

	resp, err := e.do(ctx, endpointJobData, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(e.extractorURL + "/data/" + url.PathEscape(jobID))
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Data []domain.ExtractedRecord `json:"data"`
	}
	if err := decode(endpointJobData, resp, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []domain.ExtractedRecord{}
	}
	return out.Data, nil
}

// ExportURL is the download location for req. The payee filter is only
// present for scoped requests.
func (e *HTTPExtractor) ExportURL(req domain.ExportRequest) string {
	target := e.extractorURL + "/export-consolidated/" + url.PathEscape(req.BatchID)
	if !req.Scoped() {
		return target
	}

	query := url.Values{}
	query.Set(payeesQueryKey, strings.Join(req.Payees, ","))
	return target + "?" + query.Encode()
}

func (e *HTTPExtractor) DownloadExport(ctx context.Context, req domain.ExportRequest, w io.Writer) (int64, error) {
	if strings.TrimSpace(req.BatchID) == "" {
		return 0, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	if w == nil {
		return 0, fmt.Errorf("%w: destination is required", domain.ErrValidation)
	}

	start := time.Now()
	r := e.client.R().
		SetContext(observability.WithBatchID(ctx, req.BatchID)).
		SetDoNotParseResponse(true)
	if req.Scoped() {
		r.SetQueryParam(payeesQueryKey, strings.Join(req.Payees, ","))
	}

	resp, err := r.Get(e.extractorURL + "/export-consolidated/" + url.PathEscape(req.BatchID))
	if err != nil {
		e.metrics.ObserveExtractorRequest(endpointExport, "transport_error", time.Since(start))
		return 0, &ProviderError{Endpoint: endpointExport, Message: "request failed", Cause: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if !isSuccess(resp.StatusCode()) {
		// Unparsed responses bypass the after-response hook.
		if isUnauthorizedStatus(resp.StatusCode()) {
			e.reportUnauthorized(r.Context(), resp.StatusCode())
		}
		preview, _ := io.ReadAll(io.LimitReader(body, 512))
		perr := statusError(endpointExport, resp.StatusCode(), string(preview))
		e.metrics.ObserveExtractorRequest(endpointExport, outcomeOf(perr), time.Since(start))
		return 0, perr
	}

	n, err := io.Copy(w, body)
	if err != nil {
		e.metrics.ObserveExtractorRequest(endpointExport, "transport_error", time.Since(start))
		return n, &ProviderError{Endpoint: endpointExport, StatusCode: resp.StatusCode(), Message: "download interrupted", Cause: err}
	}
	e.metrics.ObserveExtractorRequest(endpointExport, "ok", time.Since(start))
	return n, nil
}

// Liberar makes exactly one validation call; a rejected token does not
// count as a new authorization failure.
func (e *HTTPExtractor) Liberar(ctx context.Context, token string, next string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, skipUnauthorizedKey{}, true)

	_, err := e.do(ctx, endpointLiberar, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(map[string]string{
			"token": token,
			"next":  next,
		}).Get(e.backendURL + "/liberar")
	})
	return err
}

func (e *HTTPExtractor) do(ctx context.Context, endpoint string, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	resp, err := send(e.client.R().SetContext(ctx))
	if err != nil {
		e.metrics.ObserveExtractorRequest(endpoint, "transport_error", time.Since(start))
		return nil, &ProviderError{Endpoint: endpoint, Message: "request failed", Cause: err}
	}
	if resp == nil {
		e.metrics.ObserveExtractorRequest(endpoint, "transport_error", time.Since(start))
		return nil, &ProviderError{Endpoint: endpoint, Message: "empty response"}
	}

	if !isSuccess(resp.StatusCode()) {
		perr := statusError(endpoint, resp.StatusCode(), resp.String())
		e.metrics.ObserveExtractorRequest(endpoint, outcomeOf(perr), time.Since(start))
		return nil, perr
	}

	e.metrics.ObserveExtractorRequest(endpoint, "ok", time.Since(start))
	return resp, nil
}

func (e *HTTPExtractor) reportUnauthorized(ctx context.Context, statusCode int) {
	if ctx != nil {
		if skip, _ := ctx.Value(skipUnauthorizedKey{}).(bool); skip {
			return
		}
	}

	e.metrics.IncAuthorizationFailure()
	observability.WithContextLogger(e.logger, ctx).Warn("backend rejected session",
		zap.Int("status", statusCode),
	)
	if e.notifier != nil {
		e.notifier.ReportUnauthorized(ctx)
	}
}

func decode(endpoint string, resp *resty.Response, out any) error {
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &ProviderError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode(),
			Message:    "malformed response body",
			Cause:      err,
		}
	}
	return nil
}

func outcomeOf(err *ProviderError) string {
	if err.Unauthorized {
		return "unauthorized"
	}
	return "error"
}

func isSuccess(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}

func requestID(ctx context.Context) string {
	if correlationID, ok := observability.CorrelationIDFromContext(ctx); ok {
		return correlationID
	}
	return uuid.NewString()
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", errors.New("url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
