package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/infra"
)

// CloudPlatformScope is the OAuth scope required by the Vertex AI API.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Options controls how the Vertex client is configured.
type Options struct {
	ProjectID    string
	Location     string
	BaseURL      string
	HTTPClient   *http.Client
	TokenSource  oauth2.TokenSource
	PollInterval time.Duration
	Logger       *infra.Logger
}

// Prediction is one generated sample. Exactly one of BytesBase64Encoded or
// GCSURI is expected to be set.
type Prediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	GCSURI             string `json:"gcsUri,omitempty"`
	MIMEType           string `json:"mimeType,omitempty"`
}

// Client calls Vertex AI long-running predict endpoints for publisher models
// and polls the resulting operation until it completes.
type Client struct {
	project      string
	location     string
	baseURL      string
	httpClient   *http.Client
	tokens       oauth2.TokenSource
	pollInterval time.Duration
	logger       *infra.Logger
}

type predictRequest struct {
	Instances  []map[string]any `json:"instances"`
	Parameters map[string]any   `json:"parameters,omitempty"`
}

type fetchOperationRequest struct {
	OperationName string `json:"operationName"`
}

type operation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *operationError    `json:"error,omitempty"`
	Response *operationResponse `json:"response,omitempty"`
}

type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type operationResponse struct {
	Videos                  []Prediction      `json:"videos"`
	Predictions             []Prediction      `json:"predictions"`
	GeneratedSamples        []generatedSample `json:"generatedSamples"`
	RAIMediaFilteredCount   int               `json:"raiMediaFilteredCount"`
	RAIMediaFilteredReasons []string          `json:"raiMediaFilteredReasons"`
}

type generatedSample struct {
	Video struct {
		URI                string `json:"uri"`
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		EncodedVideo       string `json:"encodedVideo"`
		MIMEType           string `json:"mimeType"`
	} `json:"video"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Vertex client. When no token source is supplied,
// Application Default Credentials are used.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	project := strings.TrimSpace(opts.ProjectID)
	if project == "" {
		return nil, errors.New("vertex: project id is required")
	}
	location := strings.TrimSpace(opts.Location)
	if location == "" {
		location = "us-central1"
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", location)
	}

	tokens := opts.TokenSource
	if tokens == nil {
		ts, err := google.DefaultTokenSource(ctx, CloudPlatformScope)
		if err != nil {
			return nil, errors.Wrap(err, "vertex: resolve default credentials")
		}
		tokens = ts
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = 10 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}

	return &Client{
		project:      project,
		location:     location,
		baseURL:      baseURL,
		httpClient:   client,
		tokens:       tokens,
		pollInterval: poll,
		logger:       logger,
	}, nil
}

// Predict submits instances to model and blocks until the long-running
// operation finishes or ctx is done.
func (c *Client) Predict(ctx context.Context, model string, instances []map[string]any, params map[string]any) ([]Prediction, error) {
	if len(instances) == 0 {
		return nil, errors.New("vertex: at least one instance is required")
	}
	var op operation
	if err := c.invoke(ctx, c.modelPath(model)+":predictLongRunning", predictRequest{Instances: instances, Parameters: params}, &op); err != nil {
		return nil, err
	}
	if op.Name == "" && !op.Done {
		return nil, errors.Wrap(domain.ErrUnexpectedOutput, "vertex: operation name missing")
	}

	c.logger.Debug().
		Str("model", model).
		Str("operation", op.Name).
		Msg("vertex: predict operation started")

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, errors.Mark(errors.Wrap(ctx.Err(), "vertex: wait for operation"), domain.ErrProvider)
		case <-ticker.C:
		}
		var next operation
		if err := c.invoke(ctx, c.modelPath(model)+":fetchPredictOperation", fetchOperationRequest{OperationName: op.Name}, &next); err != nil {
			return nil, err
		}
		if next.Name == "" {
			next.Name = op.Name
		}
		op = next
	}

	if op.Error != nil {
		return nil, errors.Mark(
			errors.Newf("vertex: operation failed (%d): %s", op.Error.Code, op.Error.Message),
			domain.ErrProvider,
		)
	}
	predictions := op.Response.collect()
	if len(predictions) == 0 {
		if op.Response != nil && op.Response.RAIMediaFilteredCount > 0 {
			return nil, errors.Mark(
				errors.Newf("vertex: %d samples filtered by safety policy: %s",
					op.Response.RAIMediaFilteredCount, strings.Join(op.Response.RAIMediaFilteredReasons, "; ")),
				domain.ErrProvider,
			)
		}
		return nil, errors.Wrap(domain.ErrUnexpectedOutput, "vertex: operation returned no samples")
	}
	return predictions, nil
}

func (r *operationResponse) collect() []Prediction {
	if r == nil {
		return nil
	}
	out := make([]Prediction, 0, len(r.Videos)+len(r.Predictions)+len(r.GeneratedSamples))
	out = append(out, r.Videos...)
	out = append(out, r.Predictions...)
	for _, s := range r.GeneratedSamples {
		data := s.Video.BytesBase64Encoded
		if data == "" {
			data = s.Video.EncodedVideo
		}
		out = append(out, Prediction{
			BytesBase64Encoded: data,
			GCSURI:             s.Video.URI,
			MIMEType:           s.Video.MIMEType,
		})
	}
	return out
}

func (c *Client) modelPath(model string) string {
	return fmt.Sprintf("/projects/%s/locations/%s/publishers/google/models/%s",
		url.PathEscape(c.project), url.PathEscape(c.location), url.PathEscape(model))
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "vertex: marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "vertex: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	token, err := c.tokens.Token()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "vertex: fetch access token"), domain.ErrProvider)
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "vertex: invoke"), domain.ErrProvider)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var apiErr apiErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return errors.Mark(errors.Newf("vertex status %d: %s", resp.StatusCode, apiErr.Error.Message), domain.ErrProvider)
		}
		if len(data) > 0 {
			return errors.Mark(errors.Newf("vertex status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), domain.ErrProvider)
		}
		return errors.Mark(errors.Newf("vertex status %d", resp.StatusCode), domain.ErrProvider)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Mark(errors.Wrap(err, "vertex: decode response"), domain.ErrUnexpectedOutput)
	}
	return nil
}
