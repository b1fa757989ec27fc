package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/capture"
	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/model"
)

var (
	ErrNoEndpoint        = errors.New("remote detector needs a URL")
	ErrInferenceFailed   = errors.New("inference service failed")
	ErrMalformedResponse = errors.New("malformed inference response")
)

// Keys under which an inference service may nest its detections when it
// does not answer with a bare array.
var detectionPaths = []string{"detections", "predictions", "visual_audit.detections"}

// RemoteDetector posts screenshots to an inference service, the same
// multipart form the inference service accepts: target_url + screenshot.
type RemoteDetector struct {
	url    string
	client *retryablehttp.Client
	logger logging.Logger
}

func NewRemoteDetector(cfg Config, logger logging.Logger) (*RemoteDetector, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrNoEndpoint
	}
	if logger == nil {
		logger = logging.Nop()
	}
	def := DefaultConfig()

	client := retryablehttp.NewClient()
	client.Logger = &retryLogger{logger: logger}
	client.RetryMax = cfg.RetryMax
	if cfg.RetryMax < 0 {
		client.RetryMax = 0
	}
	client.RetryWaitMin = cfg.RetryWaitMin
	if client.RetryWaitMin <= 0 {
		client.RetryWaitMin = def.RetryWaitMin
	}
	client.RetryWaitMax = cfg.RetryWaitMax
	if client.RetryWaitMax <= 0 {
		client.RetryWaitMax = def.RetryWaitMax
	}
	client.HTTPClient.Timeout = cfg.Timeout
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented) {
			return true, nil
		}
		return false, nil
	}
	// keep the last response so its status reaches the caller
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &RemoteDetector{url: cfg.URL, client: client, logger: logger}, nil
}

func (r *RemoteDetector) Name() string { return string(BackendRemote) }

func (r *RemoteDetector) Detect(ctx context.Context, c *model.Capture) ([]auditor.RawDetection, error) {
	if c == nil || len(c.Image) == 0 {
		return nil, capture.ErrEmptyImage
	}

	body, contentType, err := multipartBody(c)
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("%w: %w", ErrInferenceFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrInferenceFailed, resp.StatusCode, truncate(string(data), 200))
	}

	raw, err := detectionsJSON(data)
	if err != nil {
		return nil, err
	}
	detections, err := auditor.ParseDetections(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	r.logger.Debug("remote detection finished",
		logging.F("target", c.TargetURL),
		logging.F("detections", len(detections)))
	return detections, nil
}

func multipartBody(c *model.Capture) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("target_url", c.TargetURL); err != nil {
		return nil, "", err
	}
	name := capture.FileName(c.ID)
	if c.ImagePath != "" {
		name = filepath.Base(c.ImagePath)
	}
	fw, err := mw.CreateFormFile("screenshot", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(c.Image); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// detectionsJSON finds the detections array in an inference response.
func detectionsJSON(data []byte) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not JSON", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(data)
	if root.IsArray() {
		return []byte(root.Raw), nil
	}
	for _, path := range detectionPaths {
		if v := root.Get(path); v.IsArray() {
			return []byte(v.Raw), nil
		}
	}
	return nil, fmt.Errorf("%w: no detections array", ErrMalformedResponse)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// retryLogger adapts logging.Logger to retryablehttp.LeveledLogger.
type retryLogger struct {
	logger logging.Logger
}

func kvFields(kv []any) []logging.Field {
	fields := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logging.F(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}

func (l *retryLogger) Error(msg string, kv ...any) { l.logger.Error(msg, kvFields(kv)...) }
func (l *retryLogger) Info(msg string, kv ...any)  { l.logger.Debug(msg, kvFields(kv)...) }
func (l *retryLogger) Debug(msg string, kv ...any) { l.logger.Debug(msg, kvFields(kv)...) }
func (l *retryLogger) Warn(msg string, kv ...any)  { l.logger.Warn(msg, kvFields(kv)...) }
