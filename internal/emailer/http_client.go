package emailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hopeana/dispatcher/internal/models"
	"github.com/hopeana/dispatcher/internal/services/dispatch"
)

const bulkPath = "/mails/bulk"

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSender calls a transactional e-mail API that accepts up to one chunk
// of templated recipients per request.
type HTTPSender struct {
	apiURL  string
	apiKey  string
	client  HTTPClient
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func NewHTTPSender(
	apiURL, apiKey string,
	ratePerSec int,
	client HTTPClient,
	logger zerolog.Logger,
) *HTTPSender {
	if ratePerSec <= 0 {
		ratePerSec = 2
	}
	logger = logger.With().Str("component", "HTTPSender").Logger()
	return &HTTPSender{
		apiURL:  strings.TrimRight(apiURL, "/"),
		apiKey:  apiKey,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
		logger:  logger,
	}
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type bulkRequest struct {
	From       address            `json:"from"`
	ReplyTo    *address           `json:"replyTo,omitempty"`
	Subject    string             `json:"subject"`
	TemplateID string             `json:"templateId"`
	Recipients []models.Recipient `json:"recipients"`
}

type bulkResponse struct {
	Success bool            `json:"success"`
	Error   json.RawMessage `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// reason extracts a human readable message from the provider's error field,
// which is either a string or an object with a message.
func (r bulkResponse) reason() string {
	if len(r.Error) > 0 {
		var s string
		if err := json.Unmarshal(r.Error, &s); err == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(r.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
		return string(r.Error)
	}
	return r.Message
}

func newBulkRequest(chunk dispatch.Chunk) bulkRequest {
	req := bulkRequest{
		From:       address{Email: chunk.Envelope.FromEmail, Name: chunk.Envelope.FromName},
		Subject:    chunk.Envelope.Subject,
		TemplateID: chunk.Envelope.TemplateID,
		Recipients: chunk.Recipients,
	}
	if chunk.Envelope.ReplyToEmail != "" {
		req.ReplyTo = &address{Email: chunk.Envelope.ReplyToEmail, Name: chunk.Envelope.ReplyToName}
	}
	return req
}

// SendBulk posts one chunk. A 4xx answer is the provider's verdict on the
// chunk and is reported in the result; transport failures and 5xx answers
// are returned as errors.
func (s *HTTPSender) SendBulk(ctx context.Context, chunk dispatch.Chunk) (dispatch.ChunkResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return dispatch.ChunkResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(newBulkRequest(chunk))
	if err != nil {
		return dispatch.ChunkResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+bulkPath, bytes.NewReader(body))
	if err != nil {
		return dispatch.ChunkResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error().Ctx(ctx).Err(err).Int("recipients", len(chunk.Recipients)).Msg("bulk request failed")
		return dispatch.ChunkResult{}, err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			s.logger.Error().Err(err).Msg("failed to close response body")
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return dispatch.ChunkResult{}, err
	}

	var parsed bulkResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode < http.StatusBadRequest {
			return dispatch.ChunkResult{}, fmt.Errorf("decode bulk response: %w", err)
		}
	}

	s.logger.Debug().Ctx(ctx).
		Int("status_code", resp.StatusCode).
		Int("recipients", len(chunk.Recipients)).
		Dur("duration", time.Since(start)).
		Msg("bulk request completed")

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return dispatch.ChunkResult{}, fmt.Errorf("bulk API error: status %s", resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		reason := parsed.reason()
		if reason == "" {
			reason = resp.Status
		}
		return dispatch.ChunkResult{Success: false, Error: reason}, nil
	case len(raw) > 0 && !parsed.Success:
		return dispatch.ChunkResult{Success: false, Error: parsed.reason()}, nil
	default:
		return dispatch.ChunkResult{Success: true}, nil
	}
}
