package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MaxResponseBytes caps a completion body. One order's JSON fits with a
// wide margin.
const MaxResponseBytes = 2 << 20

var ErrResponseTooLarge = errors.New("llm response exceeds size limit")

// Response is the raw result of one extraction call.
type Response struct {
	Status int
	Body   []byte
}

// PostJSON posts body as JSON to endpoint and reads at most
// MaxResponseBytes back. A non-2xx status is returned together with the
// body so callers can log it.
func PostJSON(ctx context.Context, client *http.Client, endpoint string, body any, headers map[string]string, logger *slog.Logger) (Response, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	callID := uuid.NewString()
	start := time.Now()

	payload, err := json.Marshal(body)
	if err != nil {
		logger.Error("llm.http.encode_error", "call_id", callID, "error", err)
		return Response{}, errors.Wrap(err, "encode extraction request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		logger.Error("llm.http.build_request_error", "call_id", callID, "error", err)
		return Response{}, errors.Wrap(err, "build extraction request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	logger.Debug("llm.http.request", "call_id", callID, "endpoint", endpoint, "request_bytes", len(payload))

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("llm.http.send_error", "call_id", callID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Response{}, errors.Wrap(err, "send extraction request")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("llm.http.response_body_close_error", "call_id", callID, "error", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	out := Response{Status: resp.StatusCode, Body: raw}
	if err != nil {
		logger.Error("llm.http.read_error", "call_id", callID, "status", resp.StatusCode, "error", err)
		return out, errors.Wrap(err, "read extraction response")
	}
	if len(raw) > MaxResponseBytes {
		logger.Error("llm.http.response_too_large", "call_id", callID, "limit", MaxResponseBytes)
		out.Body = raw[:MaxResponseBytes]
		return out, ErrResponseTooLarge
	}

	logger.Info("llm.http.response",
		"call_id", callID,
		"status", resp.StatusCode,
		"response_bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return out, fmt.Errorf("extraction endpoint returned %d", resp.StatusCode)
	}
	return out, nil
}
