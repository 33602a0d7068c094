package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/repair-orders/internal/llm"
)

// Extract implements llm.Extractor over chat/completions. Images are sent
// as data URLs next to the user text.
func (c *Client) Extract(ctx context.Context, req llm.Request) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"has_image", req.HasImage(),
		"source", req.SourceName,
	)

	instruction := req.Instruction
	if instruction == "" {
		instruction = llm.BuildInstruction()
	}
	var userContent any = llm.BuildUserText(req)
	if req.HasImage() {
		userContent = []map[string]any{
			{"type": "text", "text": llm.BuildUserText(req)},
			{"type": "image_url", "image_url": map[string]any{
				"url": "data:" + req.MimeType + ";base64," + req.ImageBase64,
			}},
		}
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": instruction},
			{"role": "user", "content": userContent},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	resp, err := llm.PostJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "status", resp.Status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("openai request: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(resp.Body, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(resp.Body),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid, "raw_bytes", len(resp.Body),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("no choices in openai response")
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"content_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
