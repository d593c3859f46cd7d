package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/llm"
)

const endpoint = "https://gemini.test/v1beta/models/gemini-2.5-flash:generateContent"

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	c := NewClient(Config{APIKey: "k-123", BaseURL: "https://gemini.test/"}, nil)
	mt := httpmock.NewMockTransport()
	c.HTTPClient().Transport = mt
	return c, mt
}

// modelReply wraps text the way generateContent does.
func modelReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"parts": []any{map[string]any{"text": text}}},
			"finishReason": "STOP",
		}},
	})
	return string(b)
}

func request() llm.ExtractRequest {
	capture := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	return llm.ExtractRequest{Document: pngBytes, MimeType: "image/png", TargetYear: 2025, CaptureDate: &capture}
}

func TestExtractFields_OK(t *testing.T) {
	c, mt := newTestClient(t)

	var sent map[string]any
	mt.RegisterResponder(http.MethodPost, endpoint, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "k-123", req.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
		return httpmock.NewStringResponse(http.StatusOK, modelReply("```json\n"+`{
			"flight_number": "ib 3456",
			"airline": "Iberia",
			"departure_airport": "mad",
			"arrival_airport": "BCN",
			"flight_date": "2025-06-14",
			"arrival_time": "10:35",
			"passenger_name": null,
			"gate": "B12",
			"confidence": {"flight_number": "HIGH", "departure_airport": "high", "arrival_airport": "high", "flight_date": "medium", "gate": "low"},
			"year_source": "explicit",
			"year_requires_verification": false
		}`+"\n```")), nil
	})

	out, raw, err := c.ExtractFields(context.Background(), request())
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	assert.Equal(t, "IB3456", out.FlightNumber)
	assert.Equal(t, "MAD", out.DepartureAirport)
	assert.Equal(t, "BCN", out.ArrivalAirport)
	assert.Equal(t, "2025-06-14", out.FlightDate)
	assert.Empty(t, out.PassengerName)
	assert.Equal(t, "high", out.Confidence["flight_number"])
	assert.NotContains(t, out.Confidence, "gate")

	// request shape: prompt first, then the document inline
	contents := sent["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].(map[string]any)["text"], "boarding pass")
	assert.Contains(t, parts[0].(map[string]any)["text"], "2025")
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	assert.Equal(t, "image/png", inline["mime_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngBytes), inline["data"])

	f := out.ToEntity()
	require.NotNil(t, f.FlightDate)
	assert.Equal(t, constants.DateExplicit, f.YearSource)
	assert.Equal(t, constants.LevelMedium, f.ConfidenceOf(constants.FieldFlightDate))
}

func TestExtractFields_LenientDropsInvalidOptionals(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodPost, endpoint, httpmock.NewStringResponder(http.StatusOK, modelReply(`{
		"departure_airport": "Madrid (MAD)",
		"arrival_airport": "Barcelona",
		"flight_date": "14 JUN",
		"arrival_time": "25:99",
		"confidence": {"departure_airport": "high", "arrival_airport": "sure"},
		"year_requires_verification": "true"
	}`)))

	out, _, err := c.ExtractFields(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "MAD", out.DepartureAirport)
	assert.Empty(t, out.ArrivalAirport)
	assert.Empty(t, out.FlightDate)
	assert.Equal(t, "14 JUN", out.FlightDateRaw)
	assert.Empty(t, out.ArrivalTime)
	assert.True(t, out.YearRequiresVerification)
	assert.NotContains(t, out.Confidence, "arrival_airport")

	f := out.ToEntity()
	assert.Nil(t, f.FlightDate)
	assert.Equal(t, constants.DateUnknown, f.YearSource)
}

func TestExtractFields_StatusClasses(t *testing.T) {
	tests := []struct {
		status    int
		class     llm.ErrorClass
		retryable bool
		sentinel  error
	}{
		{http.StatusBadRequest, llm.ClassBadRequest, false, common.ErrInvalidInput},
		{http.StatusUnauthorized, llm.ClassAuth, true, common.ErrUnauthorized},
		{http.StatusForbidden, llm.ClassAuth, true, common.ErrUnauthorized},
		{http.StatusNotFound, llm.ClassNotFound, false, common.ErrNotFound},
		{http.StatusTooManyRequests, llm.ClassRateLimited, true, common.ErrRateLimited},
		{http.StatusInternalServerError, llm.ClassServer, true, common.ErrUnavailable},
		{http.StatusServiceUnavailable, llm.ClassServer, true, common.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, mt := newTestClient(t)
			mt.RegisterResponder(http.MethodPost, endpoint,
				httpmock.NewStringResponder(tt.status, `{"error":{"message":"nope"}}`))

			_, _, err := c.ExtractFields(context.Background(), request())
			require.Error(t, err)

			var he *llm.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tt.status, he.Status)
			assert.Equal(t, tt.class, he.Class)
			assert.Equal(t, tt.retryable, he.Retryable())
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, he.Body, "nope")
			assert.NotErrorIs(t, err, llm.ErrMalformedResponse)
		})
	}
}

func TestExtractFields_Transport(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodPost, endpoint, httpmock.NewErrorResponder(errors.New("connection reset")))

	_, _, err := c.ExtractFields(context.Background(), request())
	var he *llm.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, llm.ClassTransport, he.Class)
	assert.True(t, llm.IsRetryable(err))
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestExtractFields_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":       "sorry, I cannot read this",
		"bare string":    `"MAD to BCN"`,
		"array":          `[1, 2, 3]`,
		"no candidates":  "",
		"bad model json": `{"departure_airport": "MAD",`,
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			c, mt := newTestClient(t)
			body := modelReply(text)
			if name == "no candidates" {
				body = `{"candidates": []}`
			}
			mt.RegisterResponder(http.MethodPost, endpoint, httpmock.NewStringResponder(http.StatusOK, body))

			_, _, err := c.ExtractFields(context.Background(), request())
			require.ErrorIs(t, err, llm.ErrMalformedResponse)
			assert.False(t, llm.IsRetryable(err))
		})
	}
}

func TestExtractFields_NotConfigured(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	c := NewClient(Config{}, nil)
	assert.False(t, c.Enabled())
	_, _, err := c.ExtractFields(context.Background(), request())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestExtractFields_RejectsUnsupportedDocument(t *testing.T) {
	c, mt := newTestClient(t)
	req := request()
	req.MimeType = "image/gif"
	_, _, err := c.ExtractFields(context.Background(), req)
	require.Error(t, err)
	assert.Zero(t, mt.GetTotalCallCount())
}
