package handler

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/extraction-orchestrator/internal/dataset"
	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"github.com/kursadbilgin/extraction-orchestrator/internal/service"
	"github.com/kursadbilgin/extraction-orchestrator/internal/session"
	"github.com/kursadbilgin/extraction-orchestrator/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	testVerifyURL = "https://hub.example.com/auth/verify-session-browser"
	testBaseURL   = "http://localhost:8080"
)

func TestSubmitBatch(t *testing.T) {
	t.Parallel()

	var gotNames []string
	var gotContent []string
	svc := &stubBatchService{
		submitFn: func(ctx context.Context, docs []domain.Document) (string, error) {
			for _, doc := range docs {
				raw, err := io.ReadAll(doc.Content)
				if err != nil {
					return "", err
				}
				gotNames = append(gotNames, doc.Filename)
				gotContent = append(gotContent, string(raw))
				if !doc.IsPDF() {
					return "", fmt.Errorf("%w: %s is not a pdf", domain.ErrValidation, doc.Filename)
				}
			}
			return "b-1", nil
		},
	}
	app := newTestApp(t, svc, dataset.NewPresenter(), session.NewMemoryStore(), nil)

	body, contentType := multipartBody(t, map[string]string{"a.pdf": "%PDF-a", "b.pdf": "%PDF-b"})
	resp, raw := performRequest(t, app, http.MethodPost, "/v1/batches", body, contentType)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", resp.StatusCode, string(raw))
	}

	var parsed map[string]string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["batchId"] != "b-1" {
		t.Fatalf("batchId = %q, want b-1", parsed["batchId"])
	}
	if strings.Join(gotNames, ",") != "a.pdf,b.pdf" {
		t.Fatalf("filenames = %v", gotNames)
	}
	if strings.Join(gotContent, ",") != "%PDF-a,%PDF-b" {
		t.Fatalf("contents = %v", gotContent)
	}
}

func TestSubmitBatchErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		files    map[string]string
		submit   func(ctx context.Context, docs []domain.Document) (string, error)
		wantCode int
	}{
		{
			name:     "no files",
			files:    map[string]string{},
			wantCode: fiber.StatusBadRequest,
		},
		{
			name:  "upload failed",
			files: map[string]string{"a.pdf": "x"},
			submit: func(context.Context, []domain.Document) (string, error) {
				return "", fmt.Errorf("%w: %w", domain.ErrUploadFailed, errors.New("backend error (500)"))
			},
			wantCode: fiber.StatusBadGateway,
		},
		{
			name:  "superseded",
			files: map[string]string{"a.pdf": "x"},
			submit: func(context.Context, []domain.Document) (string, error) {
				return "", domain.ErrSuperseded
			},
			wantCode: fiber.StatusConflict,
		},
		{
			name:  "session expired during upload",
			files: map[string]string{"a.pdf": "x"},
			submit: func(context.Context, []domain.Document) (string, error) {
				return "", fmt.Errorf("%w: %w", domain.ErrUploadFailed, domain.ErrSessionExpired)
			},
			wantCode: fiber.StatusUnauthorized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			app := newTestApp(t, &stubBatchService{submitFn: tc.submit}, dataset.NewPresenter(), session.NewMemoryStore(), nil)

			body, contentType := multipartBody(t, tc.files)
			resp, raw := performRequest(t, app, http.MethodPost, "/v1/batches", body, contentType)
			if resp.StatusCode != tc.wantCode {
				t.Fatalf("status = %d, want %d, body=%s", resp.StatusCode, tc.wantCode, string(raw))
			}
		})
	}
}

func TestCurrentBatchAndReset(t *testing.T) {
	t.Parallel()

	var resets int
	svc := &stubBatchService{
		view: service.View{Stage: service.StageProcessing, BatchID: "b-9", Total: 4, Completed: 1, Progress: 25},
		resetFn: func() {
			resets++
		},
	}
	app := newTestApp(t, svc, dataset.NewPresenter(), session.NewMemoryStore(), nil)

	resp, raw := performRequest(t, app, http.MethodGet, "/v1/batches/current", nil, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var view map[string]any
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if view["batchId"] != "b-9" || view["progress"] != float64(25) {
		t.Fatalf("unexpected view: %v", view)
	}

	resp, _ = performRequest(t, app, http.MethodDelete, "/v1/batches/current", nil, "")
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if resets != 1 {
		t.Fatalf("resets = %d, want 1", resets)
	}
}

func TestBatchHistory(t *testing.T) {
	t.Parallel()

	var gotLimit int
	remote := "b-1"
	svc := &stubBatchService{
		historyFn: func(ctx context.Context, limit int) ([]domain.BatchRun, error) {
			gotLimit = limit
			return []domain.BatchRun{{
				ID:            "run-1",
				RemoteBatchID: &remote,
				FileCount:     2,
				Outcome:       domain.RunSucceeded,
				StartedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			}}, nil
		},
	}
	app := newTestApp(t, svc, dataset.NewPresenter(), session.NewMemoryStore(), nil)

	tests := []struct {
		query     string
		wantCode  int
		wantLimit int
	}{
		{query: "", wantCode: fiber.StatusOK, wantLimit: defaultHistoryLimit},
		{query: "?limit=5", wantCode: fiber.StatusOK, wantLimit: 5},
		{query: "?limit=500", wantCode: fiber.StatusOK, wantLimit: maxHistoryLimit},
		{query: "?limit=abc", wantCode: fiber.StatusBadRequest},
		{query: "?limit=-1", wantCode: fiber.StatusBadRequest},
	}

	for _, tc := range tests {
		gotLimit = 0
		resp, raw := performRequest(t, app, http.MethodGet, "/v1/batches/history"+tc.query, nil, "")
		if resp.StatusCode != tc.wantCode {
			t.Fatalf("%q: status = %d, want %d", tc.query, resp.StatusCode, tc.wantCode)
		}
		if tc.wantCode != fiber.StatusOK {
			continue
		}
		if gotLimit != tc.wantLimit {
			t.Fatalf("%q: limit = %d, want %d", tc.query, gotLimit, tc.wantLimit)
		}
		var parsed historyResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Fatalf("json unmarshal error = %v", err)
		}
		if len(parsed.Data) != 1 || parsed.Data[0].Outcome != "SUCCEEDED" {
			t.Fatalf("unexpected history: %+v", parsed.Data)
		}
	}
}

func TestDatasetSelection(t *testing.T) {
	t.Parallel()

	presenter := dataset.NewPresenter()
	presenter.Load([]domain.ExtractedRecord{
		{Payee: "ANA", ApportionedAmount: 10},
		{Payee: "", ApportionedAmount: 2.5},
		{Payee: "ANA", ApportionedAmount: 5},
	})
	app := newTestApp(t, &stubBatchService{}, presenter, session.NewMemoryStore(), nil)

	resp, raw := performRequest(t, app, http.MethodGet, "/v1/dataset", nil, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	view := decodeDatasetView(t, raw)
	if len(view.Groups) != 2 || view.Groups[0].Key != "ANA" || view.Groups[0].Count != 2 || view.Groups[0].Total != 15 {
		t.Fatalf("unexpected groups: %+v", view.Groups)
	}

	unidentified := "/v1/dataset/selection/" + url.PathEscape(dataset.UnidentifiedPayee)
	resp, raw = performRequest(t, app, http.MethodPost, unidentified, nil, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(raw))
	}
	view = decodeDatasetView(t, raw)
	if !view.Groups[1].Selected || view.Groups[0].Selected || view.AllSelected {
		t.Fatalf("unexpected selection: %+v", view)
	}

	resp, raw = performRequest(t, app, http.MethodPost, "/v1/dataset/selection", nil, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if view = decodeDatasetView(t, raw); !view.AllSelected {
		t.Fatalf("select-all should select every group: %+v", view)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/dataset/selection/NOBODY", nil, "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown group", resp.StatusCode)
	}
}

func TestDatasetExport(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		exportFn: func() (string, error) {
			return "https://api.example.com/extractor/export-consolidated/b-1?titulares=ANA", nil
		},
	}
	app := newTestApp(t, svc, dataset.NewPresenter(), session.NewMemoryStore(), nil)

	resp, _ := performRequest(t, app, http.MethodGet, "/v1/dataset/export", nil, "")
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if got := resp.Header.Get(fiber.HeaderLocation); got != "https://api.example.com/extractor/export-consolidated/b-1?titulares=ANA" {
		t.Fatalf("Location = %q", got)
	}

	svc.exportFn = func() (string, error) {
		return "", fmt.Errorf("%w: no finished batch to export", domain.ErrConflict)
	}
	resp, _ = performRequest(t, app, http.MethodGet, "/v1/dataset/export", nil, "")
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestSessionGate(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	app := newTestApp(t, &stubBatchService{}, dataset.NewPresenter(), store, nil)

	resp, _ := performRequest(t, app, http.MethodGet, "/v1/batches/current", nil, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 while session is valid", resp.StatusCode)
	}

	if _, err := store.MarkExpired(context.Background()); err != nil {
		t.Fatalf("MarkExpired() error = %v", err)
	}

	resp, raw := performRequest(t, app, http.MethodGet, "/v1/batches/current", nil, "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 while expired", resp.StatusCode)
	}
	var blocked sessionExpiredResponse
	if err := json.Unmarshal(raw, &blocked); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if blocked.Error != "session expired" {
		t.Fatalf("error = %q", blocked.Error)
	}
	wantRedirect := url.QueryEscape(testBaseURL + "/v1/batches/current")
	if !strings.HasPrefix(blocked.RecoveryURL, testVerifyURL+"?system_id=2") || !strings.Contains(blocked.RecoveryURL, "redirect_url="+wantRedirect) {
		t.Fatalf("recoveryUrl = %q", blocked.RecoveryURL)
	}

	resp, raw = performRequest(t, app, http.MethodGet, "/v1/session", nil, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 for session status", resp.StatusCode)
	}
	var status sessionResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if status.State != "expired" || status.RecoveryURL == "" {
		t.Fatalf("unexpected session status: %+v", status)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/livez", nil, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want probes outside the gate", resp.StatusCode)
	}
}

func TestSessionRecover(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &stubBatchService{}, dataset.NewPresenter(), session.NewMemoryStore(), nil)

	resp, _ := performRequest(t, app, http.MethodGet, "/session/recover?from=%2Fv1%2Fdataset", nil, "")
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	want := testVerifyURL + "?system_id=2&redirect_url=" + url.QueryEscape(testBaseURL+"/v1/dataset")
	if got := resp.Header.Get(fiber.HeaderLocation); got != want {
		t.Fatalf("Location = %q, want %q", got, want)
	}
}

func TestHandshake(t *testing.T) {
	t.Parallel()

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()

		calls := 0
		app := newTestApp(t, &stubBatchService{}, dataset.NewPresenter(), session.NewMemoryStore(), func(context.Context, string, string) error {
			calls++
			return nil
		})

		resp, raw := performRequest(t, app, http.MethodGet, "/liberar", nil, "")
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		if !strings.Contains(string(raw), "invalid token") {
			t.Fatalf("body = %s, want invalid token", string(raw))
		}
		if calls != 0 {
			t.Fatalf("validator calls = %d, want 0", calls)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		app := newTestApp(t, &stubBatchService{}, dataset.NewPresenter(), session.NewMemoryStore(), func(context.Context, string, string) error {
			return errors.New("backend error (401)")
		})

		resp, raw := performRequest(t, app, http.MethodGet, "/liberar?token=t-1", nil, "")
		if resp.StatusCode != fiber.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
		var parsed map[string]string
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Fatalf("json unmarshal error = %v", err)
		}
		if parsed["error"] != "access validation failed" {
			t.Fatalf("error = %q", parsed["error"])
		}
	})

	t.Run("accepted restores session", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		if _, err := store.MarkExpired(context.Background()); err != nil {
			t.Fatalf("MarkExpired() error = %v", err)
		}

		var gotToken, gotNext string
		app := newTestApp(t, &stubBatchService{}, dataset.NewPresenter(), store, func(_ context.Context, token string, next string) error {
			gotToken, gotNext = token, next
			return nil
		})

		resp, _ := performRequest(t, app, http.MethodGet, "/liberar?token=t-1&next=%2Fv1%2Fdataset", nil, "")
		if resp.StatusCode != fiber.StatusFound {
			t.Fatalf("status = %d, want 302", resp.StatusCode)
		}
		if got := resp.Header.Get(fiber.HeaderLocation); got != "/v1/dataset" {
			t.Fatalf("Location = %q, want /v1/dataset", got)
		}
		if gotToken != "t-1" || gotNext != "/v1/dataset" {
			t.Fatalf("validator got token=%q next=%q", gotToken, gotNext)
		}
		if state, _ := store.Load(context.Background()); state != domain.SessionValid {
			t.Fatalf("state = %s, want valid", state)
		}
	})
}

func TestHealthRoutes(t *testing.T) {
	t.Parallel()

	t.Run("readyz without dependencies", func(t *testing.T) {
		t.Parallel()

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, nil, nil)

		resp, raw := performRequest(t, app, http.MethodGet, "/readyz", nil, "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(raw))
		}
		if !strings.Contains(string(raw), `"postgres":"disabled"`) {
			t.Fatalf("body = %s, want postgres disabled", string(raw))
		}
	})

	t.Run("readyz returns 200 when dependencies up", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(nil)
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb)

		resp, raw := performRequest(t, app, http.MethodGet, "/readyz", nil, "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(raw))
		}
	})

	t.Run("readyz returns 503 when dependencies down", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{pingErr: errors.New("postgres down")})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(errors.New("redis down"))
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb)

		resp, raw := performRequest(t, app, http.MethodGet, "/readyz", nil, "")
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503, body=%s", resp.StatusCode, string(raw))
		}
	})
}

func newTestApp(
	t *testing.T,
	svc BatchService,
	presenter DatasetPresenter,
	store session.Store,
	liberar func(ctx context.Context, token string, next string) error,
) *fiber.App {
	t.Helper()

	guardian, err := session.NewGuardian(store, session.HubConfig{
		VerifyURL:     testVerifyURL,
		SystemID:      "2",
		PublicBaseURL: testBaseURL,
	}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewGuardian() error = %v", err)
	}

	if liberar == nil {
		liberar = func(context.Context, string, string) error { return nil }
	}
	handshake, err := session.NewHandshake(stubValidator(liberar), guardian, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewHandshake() error = %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	app.Use(RequestContext())

	if err := Register(app, Dependencies{
		Batches:   svc,
		Dataset:   presenter,
		Guardian:  guardian,
		Handshake: handshake,
		Prompt:    session.NewPrompt(guardian, zap.NewNop()),
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	return app
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

func multipartBody(t *testing.T, files map[string]string) (io.Reader, string) {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	// Deterministic part order.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range names {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadField, name))
		header.Set("Content-Type", domain.ContentTypePDF)
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		if _, err := part.Write([]byte(files[name])); err != nil {
			t.Fatalf("part.Write() error = %v", err)
		}
	}
	if len(names) == 0 {
		if err := w.WriteField("note", "empty"); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart Close() error = %v", err)
	}
	return &buf, w.FormDataContentType()
}

func decodeDatasetView(t *testing.T, raw []byte) dataset.View {
	t.Helper()

	var view dataset.View
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("json unmarshal error = %v, body=%s", err, string(raw))
	}
	return view
}

type stubValidator func(ctx context.Context, token string, next string) error

func (f stubValidator) Liberar(ctx context.Context, token string, next string) error {
	return f(ctx, token, next)
}

type stubBatchService struct {
	submitFn  func(ctx context.Context, docs []domain.Document) (string, error)
	resetFn   func()
	view      service.View
	historyFn func(ctx context.Context, limit int) ([]domain.BatchRun, error)
	exportFn  func() (string, error)
}

func (s *stubBatchService) Submit(ctx context.Context, docs []domain.Document) (string, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, docs)
	}
	return "", errors.New("not implemented")
}

func (s *stubBatchService) Reset() {
	if s.resetFn != nil {
		s.resetFn()
	}
}

func (s *stubBatchService) View() service.View {
	return s.view
}

func (s *stubBatchService) History(ctx context.Context, limit int) ([]domain.BatchRun, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, limit)
	}
	return []domain.BatchRun{}, nil
}

func (s *stubBatchService) ExportURL() (string, error) {
	if s.exportFn != nil {
		return s.exportFn()
	}
	return "", domain.ErrConflict
}

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") && h.pingErr != nil {
			cmd.SetErr(h.pingErr)
			return h.pingErr
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}
