package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/storyreel/storyreel/internal/domain"
	"github.com/storyreel/storyreel/internal/redact"
)

const (
	defaultBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 10 * time.Minute
	defaultHTTPTimeout  = 60 * time.Second
)

// Options configures a Client. APIKey and Model are required; everything
// else falls back to a sensible default.
type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	PollInterval time.Duration
	PollTimeout  time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client calls the video generation API. Generation is a long-running
// operation: ImageToVideo submits and polls until the operation settles,
// DownloadArtifact fetches the finished bytes.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	pollInterval time.Duration
	pollTimeout  time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a Client from opts, applying defaults for any unset
// optional field.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("veo: API key is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("veo: model name is required")
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        opts.Model,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		httpClient:   httpClient,
		logger:       logger.With("component", "veo_client"),
	}, nil
}

// ImageToVideo submits a generation request and polls the resulting
// operation until it produces an artifact, fails, or the poll budget runs
// out. Cancellation of ctx returns ctx.Err() unwrapped; every provider
// failure comes back as a *domain.ServiceError.
func (c *Client) ImageToVideo(ctx context.Context, req domain.GenerationRequest) (domain.ArtifactHandle, error) {
	op, err := c.submit(ctx, req)
	if err != nil {
		return domain.ArtifactHandle{}, err
	}

	c.logger.Debug("operation submitted",
		"scene_id", req.SceneID,
		"operation", op.Name)

	return c.poll(ctx, req.SceneID, op.Name)
}

func (c *Client) submit(ctx context.Context, req domain.GenerationRequest) (*operation, error) {
	inst := instance{Prompt: req.Prompt}
	if len(req.ImagePaths) > 0 {
		img, err := loadImage(req.ImagePaths[0])
		if err != nil {
			return nil, domain.WrapServiceError(domain.ErrorKindInvalidInput, serviceName, "submit", err)
		}
		inst.Image = img
	}
	if len(req.ImagePaths) > 1 {
		ref, err := loadImage(req.ImagePaths[1])
		if err != nil {
			return nil, domain.WrapServiceError(domain.ErrorKindInvalidInput, serviceName, "submit", err)
		}
		inst.ReferenceImage = ref
	}

	body := predictRequest{
		Instances:  []instance{inst},
		Parameters: paramsFor(req.Params),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, domain.WrapServiceError(domain.ErrorKindInvalidInput, serviceName, "submit", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, c.model)
	var op operation
	if err := c.doJSON(ctx, http.MethodPost, endpoint, bytes.NewReader(payload), "submit", &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, domain.NewServiceError(domain.ErrorKindServerError, serviceName, "submit", "",
			"operation name missing from response")
	}
	return &op, nil
}

func (c *Client) poll(ctx context.Context, sceneID, opName string) (domain.ArtifactHandle, error) {
	pollCtx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, opName)
	for {
		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return domain.ArtifactHandle{}, ctx.Err()
			}
			return domain.ArtifactHandle{}, c.pollTimeoutError(opName)
		case <-time.After(c.pollInterval):
		}

		var op operation
		if err := c.doJSON(pollCtx, http.MethodGet, endpoint, nil, "poll", &op); err != nil {
			if ctx.Err() != nil {
				return domain.ArtifactHandle{}, ctx.Err()
			}
			if pollCtx.Err() != nil {
				return domain.ArtifactHandle{}, c.pollTimeoutError(opName)
			}
			return domain.ArtifactHandle{}, err
		}
		if !op.Done {
			c.logger.Debug("operation pending", "scene_id", sceneID, "operation", opName)
			continue
		}
		if op.Error != nil {
			return domain.ArtifactHandle{}, serviceErrorFromOperation("poll", op.Error)
		}
		return handleFromOperation(opName, &op)
	}
}

func (c *Client) pollTimeoutError(opName string) *domain.ServiceError {
	return domain.NewServiceError(domain.ErrorKindTimeout, serviceName, "poll", "",
		fmt.Sprintf("operation %s did not complete within %s", opName, c.pollTimeout))
}

// handleFromOperation extracts the artifact reference from a completed
// operation. Completion without a sample means the provider filtered the
// output, most often for policy reasons it reports alongside.
func handleFromOperation(opName string, op *operation) (domain.ArtifactHandle, error) {
	var gv *generateVideoResponse
	if op.Response != nil {
		gv = op.Response.GenerateVideoResponse
	}
	if gv != nil && len(gv.GeneratedSamples) > 0 && gv.GeneratedSamples[0].Video != nil {
		return domain.ArtifactHandle{
			URI:      gv.GeneratedSamples[0].Video.URI,
			Name:     opName,
			MimeType: "video/mp4",
		}, nil
	}
	if gv != nil && len(gv.RaiMediaFilteredReasons) > 0 {
		reason := strings.Join(gv.RaiMediaFilteredReasons, "; ")
		kind := kindFromSignals(0, "", reason)
		if kind == domain.ErrorKindUnknown {
			kind = domain.ErrorKindContentPolicy
		}
		return domain.ArtifactHandle{}, domain.NewServiceError(kind, serviceName, "poll", "RAI_FILTERED", reason)
	}
	return domain.ArtifactHandle{}, domain.NewServiceError(domain.ErrorKindUnknown, serviceName, "poll", "",
		"operation completed without samples")
}

// DownloadArtifact fetches the artifact bytes into destDir and returns the
// written file path.
func (c *Client) DownloadArtifact(ctx context.Context, handle domain.ArtifactHandle, destDir string) (string, error) {
	target, err := c.resolveURI(handle.URI)
	if err != nil {
		return "", domain.WrapServiceError(domain.ErrorKindInvalidInput, serviceName, "download", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", domain.WrapServiceError(domain.ErrorKindInvalidInput, serviceName, "download", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", c.transportError(ctx, "download", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError("download", resp)
	}

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", domain.WrapServiceError(domain.ErrorKindUnknown, serviceName, "download", err)
	}
	dest := filepath.Join(destDir, artifactFilename(handle))
	out, err := os.Create(dest)
	if err != nil {
		return "", domain.WrapServiceError(domain.ErrorKindUnknown, serviceName, "download", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", c.transportError(ctx, "download", err)
	}

	c.logger.Debug("artifact downloaded",
		"path", dest,
		"bytes", written,
		"uri", redact.String(handle.URI))
	return dest, nil
}

// doJSON performs one authenticated request and decodes the 200 response
// into out. Non-2xx responses and transport failures come back classified.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body io.Reader, stage string, out any) error {
	target, err := withKey(endpoint, c.apiKey)
	if err != nil {
		return domain.WrapServiceError(domain.ErrorKindInvalidInput, serviceName, stage, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return domain.WrapServiceError(domain.ErrorKindInvalidInput, serviceName, stage, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.transportError(ctx, stage, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(stage, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapServiceError(domain.ErrorKindServerError, serviceName, stage, err)
	}
	return nil
}

// transportError classifies a failed round trip. Caller cancellation is
// passed through untouched so the orchestration layer sees a plain
// context error.
func (c *Client) transportError(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	kind := domain.ErrorKindNetwork
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = domain.ErrorKindTimeout
	}
	c.logger.Debug("transport failure", "stage", stage, "error", redact.Error(err))
	return domain.WrapServiceError(kind, serviceName, stage, err)
}

// decodeAPIError reads a non-2xx response body and classifies it. The body
// is capped because error payloads are small and a broken server could
// stream anything.
func decodeAPIError(stage string, resp *http.Response) *domain.ServiceError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	var envelope apiErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return serviceErrorFromStatus(stage, resp.StatusCode, envelope.Error.Status, envelope.Error.Message)
	}
	return serviceErrorFromStatus(stage, resp.StatusCode, "", strings.TrimSpace(string(raw)))
}

// resolveURI makes the artifact URI absolute and authenticated.
func (c *Client) resolveURI(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("artifact URI is empty")
	}
	target := raw
	if !strings.Contains(raw, "://") {
		target = c.baseURL + "/" + strings.TrimLeft(raw, "/")
	}
	return withKey(target, c.apiKey)
}

// withKey appends the API key query parameter, preserving any parameters
// already present.
func withKey(endpoint, key string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func paramsFor(p domain.GenerationParams) *parameters {
	if p.AspectRatio == "" && p.DurationSeconds == 0 && p.NegativePrompt == "" {
		return nil
	}
	return &parameters{
		AspectRatio:     normalizeAspectRatio(p.AspectRatio),
		DurationSeconds: p.DurationSeconds,
		NegativePrompt:  p.NegativePrompt,
	}
}

// normalizeAspectRatio maps loose caller spellings onto the two ratios the
// API accepts. Unrecognized values pass through so the API can reject them
// with a classified error.
func normalizeAspectRatio(ratio string) string {
	switch strings.ToLower(strings.TrimSpace(ratio)) {
	case "":
		return ""
	case "16:9", "16x9", "landscape", "wide", "horizontal":
		return "16:9"
	case "9:16", "9x16", "portrait", "vertical":
		return "9:16"
	default:
		return ratio
	}
}

func loadImage(imagePath string) (*inlineImage, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read input image: %w", err)
	}
	return &inlineImage{
		BytesBase64Encoded: base64.StdEncoding.EncodeToString(data),
		MimeType:           mimeForPath(imagePath),
	}, nil
}

func mimeForPath(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// artifactFilename picks a local filename for the downloaded clip, derived
// from the operation name when available.
func artifactFilename(handle domain.ArtifactHandle) string {
	base := ""
	if handle.Name != "" {
		base = path.Base(handle.Name)
	}
	if base == "" || base == "." || base == "/" {
		if u, err := url.Parse(handle.URI); err == nil {
			base = path.Base(u.Path)
		}
	}
	if base == "" || base == "." || base == "/" {
		base = "artifact"
	}
	base = strings.SplitN(base, ":", 2)[0]
	if filepath.Ext(base) == "" {
		base += ".mp4"
	}
	return base
}
