package mineru

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/phrazzld/docstream/internal/config"
	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/parsejob"
)

const tracerName = "github.com/phrazzld/docstream/internal/platform/mineru"

var (
	doneStates   = map[string]bool{"done": true, "completed": true, "success": true, "finished": true}
	failedStates = map[string]bool{"failed": true, "error": true}
)

// errNotReady marks a 404 from a status endpoint: the job is not visible yet.
var errNotReady = errors.New("result not ready")

// errRateLimited marks a 429. The server rejected the request before acting
// on it, so even job creation may be retried.
var errRateLimited = errors.New("rate limited")

// defaultMaxArchiveBytes caps the result archive when the config leaves it unset.
const defaultMaxArchiveBytes = 200 << 20

// Client talks to the MinerU v4 extraction API and implements parsejob.Service.
type Client struct {
	baseURL      string
	apiKey       string
	modelVersion string
	maxRetries   int
	maxArchive   int64

	httpClient     *http.Client
	downloadClient *http.Client
	logger         *slog.Logger
	tracer         trace.Tracer

	// newSession generates artifact id prefixes; replaced in tests.
	newSession func() string
}

var _ parsejob.Service = (*Client)(nil)

// NewClient builds a client from parser configuration. The API key may be
// empty; Submit then fails with domain.ErrNotConfigured unless WithAPIKey
// supplies one.
func NewClient(cfg config.ParserConfig, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: parser base URL cannot be empty", domain.ErrNotConfigured)
	}
	if logger == nil {
		logger = slog.Default()
	}
	modelVersion := cfg.ModelVersion
	if modelVersion == "" {
		modelVersion = "vlm"
	}
	maxArchive := cfg.MaxArchiveBytes
	if maxArchive <= 0 {
		maxArchive = defaultMaxArchiveBytes
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		modelVersion:   modelVersion,
		maxRetries:     cfg.MaxRetries,
		maxArchive:     maxArchive,
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout()},
		downloadClient: &http.Client{Timeout: cfg.DownloadTimeout()},
		logger:         logger.With("component", "mineru_client"),
		tracer:         otel.Tracer(tracerName),
		newSession: func() string {
			return uuid.NewString()[:8]
		},
	}, nil
}

// WithAPIKey returns a copy of the client using key. An empty key returns c.
func (c *Client) WithAPIKey(key string) *Client {
	key = strings.TrimSpace(key)
	if key == "" {
		return c
	}
	copied := *c
	copied.apiKey = key
	return &copied
}

// Service returns the client as a parse job service using key, or the
// configured key when key is empty.
func (c *Client) Service(key string) parsejob.Service {
	return c.WithAPIKey(key)
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// KeyPreview returns a masked form of the API key for status output.
func (c *Client) KeyPreview() string {
	if len(c.apiKey) <= 8 {
		return strings.Repeat("*", len(c.apiKey))
	}
	return c.apiKey[:4] + "..." + c.apiKey[len(c.apiKey)-4:]
}

// Submit creates an extraction job. URLs are submitted directly; uploaded
// bytes go through a presigned batch upload URL.
func (c *Client) Submit(ctx context.Context, input domain.Input) (parsejob.Handle, error) {
	ctx, span := c.tracer.Start(ctx, "mineru.Submit",
		trace.WithAttributes(attribute.Bool("mineru.url_mode", input.IsURL())))
	defer span.End()

	if !c.Configured() {
		err := fmt.Errorf("%w: MinerU API key is not set", domain.ErrNotConfigured)
		recordError(span, err)
		return parsejob.Handle{}, err
	}

	var (
		handle parsejob.Handle
		err    error
	)
	if input.IsURL() {
		handle, err = c.submitURL(ctx, input.URL)
	} else {
		handle, err = c.submitFile(ctx, input)
	}
	if err != nil {
		recordError(span, err)
		return parsejob.Handle{}, err
	}

	span.SetAttributes(attribute.String("mineru.job", handle.String()))
	return handle, nil
}

func (c *Client) submitURL(ctx context.Context, docURL string) (parsejob.Handle, error) {
	var data createTaskData
	body := createTaskRequest{URL: docURL, ModelVersion: c.modelVersion}
	if err := c.call(ctx, http.MethodPost, "/extract/task", body, &data); err != nil {
		return parsejob.Handle{}, fmt.Errorf("%w: create task: %v", domain.ErrJobSubmission, err)
	}
	if data.TaskID == "" {
		return parsejob.Handle{}, fmt.Errorf("%w: response carried no task id", domain.ErrJobSubmission)
	}

	c.logger.InfoContext(ctx, "extraction task created", "task_id", data.TaskID)
	return parsejob.Handle{ID: data.TaskID}, nil
}

func (c *Client) submitFile(ctx context.Context, input domain.Input) (parsejob.Handle, error) {
	dataID := uuid.NewString()[:8]
	// The client's filename is not forwarded; non-ASCII names break presigning.
	name := fmt.Sprintf("document_%s.pdf", dataID)

	var data batchUploadData
	body := batchUploadRequest{
		Files:        []batchFile{{Name: name, DataID: dataID}},
		ModelVersion: c.modelVersion,
	}
	if err := c.call(ctx, http.MethodPost, "/file-urls/batch", body, &data); err != nil {
		return parsejob.Handle{}, fmt.Errorf("%w: request upload URL: %v", domain.ErrJobSubmission, err)
	}
	if data.BatchID == "" || len(data.FileURLs) == 0 {
		return parsejob.Handle{}, fmt.Errorf("%w: response carried no upload URL", domain.ErrJobSubmission)
	}

	if err := c.upload(ctx, data.FileURLs[0], input.Data); err != nil {
		return parsejob.Handle{}, fmt.Errorf("%w: upload document: %v", domain.ErrJobSubmission, err)
	}

	c.logger.InfoContext(ctx, "document uploaded", "batch_id", data.BatchID, "data_id", dataID, "bytes", len(input.Data))
	return parsejob.Handle{ID: data.BatchID, DataID: dataID, Batch: true}, nil
}

// upload PUTs the document to the presigned URL. No extra headers are sent;
// the signature covers them and the storage backend rejects additions.
func (c *Client) upload(ctx context.Context, uploadURL string, data []byte) error {
	return c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.downloadClient.Do(req)
		if err != nil {
			return err
		}
		defer drain(resp.Body)
		return classifyStatus(resp.StatusCode)
	})
}

// Poll fetches the job state and, once done, downloads and unpacks the result archive.
func (c *Client) Poll(ctx context.Context, handle parsejob.Handle) (parsejob.PollStatus, error) {
	ctx, span := c.tracer.Start(ctx, "mineru.Poll", trace.WithAttributes(attribute.String("mineru.job", handle.String())))
	defer span.End()

	result, err := c.fetchState(ctx, handle)
	if errors.Is(err, errNotReady) {
		return parsejob.PollStatus{Stage: domain.StatusParsing, Message: "waiting for parser"}, nil
	}
	if err != nil {
		recordError(span, err)
		return parsejob.PollStatus{}, err
	}

	state := strings.ToLower(strings.TrimSpace(result.State))
	span.SetAttributes(attribute.String("mineru.state", state))

	switch {
	case doneStates[state]:
		parsed, err := c.collect(ctx, handle, result)
		if err != nil {
			recordError(span, err)
			return parsejob.PollStatus{}, err
		}
		return parsejob.PollStatus{Done: true, Stage: domain.StatusProcessing, Percent: 100, Result: parsed}, nil
	case failedStates[state]:
		msg := result.ErrMsg
		if msg == "" {
			msg = "parser reported failure"
		}
		err := fmt.Errorf("%w: %s", domain.ErrJobFailed, msg)
		recordError(span, err)
		return parsejob.PollStatus{}, err
	default:
		return progressStatus(state, result.Progress), nil
	}
}

func (c *Client) fetchState(ctx context.Context, handle parsejob.Handle) (extractResult, error) {
	if !handle.Batch {
		var result extractResult
		if err := c.call(ctx, http.MethodGet, "/extract/task/"+handle.ID, nil, &result); err != nil {
			return extractResult{}, wrapPollError(err)
		}
		return result, nil
	}

	var batch batchResultData
	if err := c.call(ctx, http.MethodGet, "/extract-results/batch/"+handle.ID, nil, &batch); err != nil {
		return extractResult{}, wrapPollError(err)
	}
	if len(batch.ExtractResult) == 0 {
		return extractResult{}, errNotReady
	}
	for _, r := range batch.ExtractResult {
		if r.DataID == handle.DataID {
			return r, nil
		}
	}
	return batch.ExtractResult[0], nil
}

func wrapPollError(err error) error {
	if errors.Is(err, errNotReady) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: status check: %v", domain.ErrJobFailed, err)
}

// progressStatus maps a running state onto a stage and the job's own percent.
func progressStatus(state string, p *extractProgress) parsejob.PollStatus {
	switch state {
	case "pending", "waiting-file", "queued", "":
		return parsejob.PollStatus{Stage: domain.StatusParsing, Percent: 0, Message: "queued at parser"}
	case "converting":
		return parsejob.PollStatus{Stage: domain.StatusProcessing, Percent: 95, Message: "converting output"}
	}

	status := parsejob.PollStatus{Stage: domain.StatusProcessing, Message: "parsing document"}
	if p != nil && p.TotalPages > 0 {
		status.Percent = p.ExtractedPages * 100 / p.TotalPages
		status.Message = fmt.Sprintf("parsed %d/%d pages", p.ExtractedPages, p.TotalPages)
	}
	return status
}

// collect builds the parse result from a finished job.
func (c *Client) collect(ctx context.Context, handle parsejob.Handle, result extractResult) (*domain.ParseResult, error) {
	meta := map[string]any{"model_version": c.modelVersion}
	if handle.Batch {
		meta["parser"] = "mineru-api-v4-batch"
		meta["data_id"] = handle.DataID
	} else {
		meta["parser"] = "mineru-api-v4-single"
		meta["task_id"] = handle.ID
	}
	parsed := &domain.ParseResult{Metadata: meta}

	if result.FullZipURL != "" {
		archive, err := c.download(ctx, result.FullZipURL)
		if err != nil {
			return nil, fmt.Errorf("%w: download result: %v", domain.ErrJobFailed, err)
		}
		text, artifacts, err := extractArchive(archive, c.newSession())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrJobFailed, err)
		}
		parsed.Text = text
		parsed.Artifacts = artifacts
	}
	if parsed.Text == "" {
		parsed.Text = result.MDContent
	}

	c.logger.InfoContext(ctx, "extraction result collected",
		"job", handle.String(),
		"text_bytes", len(parsed.Text),
		"artifacts", len(parsed.Artifacts))
	return parsed, nil
}

func (c *Client) download(ctx context.Context, archiveURL string) ([]byte, error) {
	var body []byte
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.downloadClient.Do(req)
		if err != nil {
			return err
		}
		defer drain(resp.Body)
		if err := classifyStatus(resp.StatusCode); err != nil {
			return err
		}
		if resp.ContentLength > c.maxArchive {
			return backoff.Permanent(fmt.Errorf("result archive is %d bytes, limit is %d", resp.ContentLength, c.maxArchive))
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, c.maxArchive+1))
		if err != nil {
			return err
		}
		if int64(len(body)) > c.maxArchive {
			return backoff.Permanent(fmt.Errorf("result archive exceeds %d bytes", c.maxArchive))
		}
		return nil
	})
	return body, err
}

// call performs an authenticated JSON request and decodes the envelope's data
// into out. Only GET and PUT are retried on transient failures; a POST that
// failed after reaching the server may already have created a job, so it is
// retried on 429 alone.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	idempotent := method == http.MethodGet || method == http.MethodPut

	attempt := func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer drain(resp.Body)

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return backoff.Permanent(errors.New("authentication failed, check the MinerU API key"))
		case http.StatusForbidden:
			return backoff.Permanent(errors.New("API key lacks permission or has expired"))
		case http.StatusNotFound:
			return backoff.Permanent(errNotReady)
		}
		if err := classifyStatus(resp.StatusCode); err != nil {
			return err
		}

		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		if env.Code != 0 {
			return backoff.Permanent(fmt.Errorf("api error %d: %s", env.Code, env.Msg))
		}
		if out != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response data: %w", err))
			}
		}
		return nil
	}

	return c.retry(ctx, func() error {
		err := attempt()
		if err == nil || idempotent || errors.Is(err, errRateLimited) {
			return err
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}
		return backoff.Permanent(err)
	})
}

// retry runs op with exponential backoff, up to maxRetries extra attempts.
func (c *Client) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	var policy backoff.BackOff = b
	if c.maxRetries >= 0 {
		policy = backoff.WithMaxRetries(b, uint64(c.maxRetries))
	}

	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// classifyStatus treats 5xx and 429 as retryable and other non-2xx as permanent.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: unexpected status %d", errRateLimited, code)
	case code >= 500:
		return fmt.Errorf("unexpected status %d", code)
	default:
		return backoff.Permanent(fmt.Errorf("unexpected status %d", code))
	}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
