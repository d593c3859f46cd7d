// Package gemini implements llm.FieldExtractor on the Gemini generateContent API,
// sending the whole boarding-pass document inline.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/llm"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("gemini: api key not configured")

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// ExtractFields implements llm.FieldExtractor. Provider failures come back as
// *llm.HTTPError; unusable payloads wrap llm.ErrMalformedResponse.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.FlightFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	if !c.Enabled() {
		return llm.FlightFields{}, nil, ErrNotConfigured
	}
	data, mimeType, err := llm.EncodeDocument(req, c.cfg.MaxMB)
	if err != nil {
		return llm.FlightFields{}, nil, fmt.Errorf("gemini: %w", err)
	}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"mime_type", mimeType,
		"doc_bytes", len(req.Document),
		"target_year", req.TargetYear,
		"has_capture_date", req.CaptureDate != nil,
	)

	body := map[string]any{
		"contents": []map[string]any{{
			"parts": []part{
				{Text: llm.BuildPrompt(req)},
				{InlineData: &inlineData{MimeType: mimeType, Data: data}},
			},
		}},
		"generationConfig": map[string]any{
			"temperature":      c.cfg.Temperature,
			"responseMimeType": "application/json",
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1beta/models/" + c.cfg.Model + ":generateContent"
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, map[string]string{"x-goog-api-key": c.cfg.APIKey}, c.log)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "error", err,
			"retryable", llm.IsRetryable(err),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.FlightFields{}, nil, err
	}

	content, err := responseText(raw)
	if err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.FlightFields{}, raw, fmt.Errorf("%w: %v", llm.ErrMalformedResponse, err)
	}

	rawContent, err := c.clean(rid, []byte(content))
	if err != nil {
		c.log.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err, "content", content,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.FlightFields{}, []byte(content), fmt.Errorf("%w: %v", llm.ErrMalformedResponse, err)
	}

	var out llm.FlightFields
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.log.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.FlightFields{}, rawContent, fmt.Errorf("%w: unmarshal fields: %v", llm.ErrMalformedResponse, err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"flight", out.FlightNumber,
		"from", out.DepartureAirport,
		"to", out.ArrivalAirport,
		"date", out.FlightDate,
		"year_source", out.YearSource,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

// clean normalizes the model JSON and validates it strictly, falling back to
// the lenient pass that drops offending fields.
func (c *Client) clean(rid string, content []byte) ([]byte, error) {
	schema := llm.BuildFlightJSONSchema()
	normalized, _, err := llm.NormalizeAndSanitizeJSON(content, c.log)
	if err != nil {
		return nil, err
	}
	if err := llm.ValidateJSONAgainstSchema(schema, normalized); err == nil {
		return normalized, nil
	}
	cleaned, dropped, err := llm.SanitizeOptionalFields(normalized)
	if err != nil {
		return nil, fmt.Errorf("sanitize failed: %w", err)
	}
	if err := llm.ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		return nil, err
	}
	c.log.Warn("llm.extract.lenient_sanitize_applied", "req_id", rid, "dropped", dropped)
	return cleaned, nil
}

// responseText joins the text parts of the first candidate.
func responseText(raw []byte) (string, error) {
	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		return "", errors.New("no candidates in gemini response")
	}
	var b strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := llm.StripFences(b.String())
	if text == "" {
		return "", fmt.Errorf("empty gemini response (finish reason %q)", gr.Candidates[0].FinishReason)
	}
	return text, nil
}
