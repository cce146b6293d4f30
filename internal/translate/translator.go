// Package translate bridges the chat to English through the public
// Google Translate endpoint. Failures fall back to the untranslated
// text so the reply path never stalls on the translation layer.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apiURL = "https://translate.googleapis.com/translate_a/single"

// Translator converts between the active chat language and English.
type Translator struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Translator {
	return &Translator{
		baseURL: apiURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// ToEnglish translates inbound text. English input passes through.
func (t *Translator) ToEnglish(ctx context.Context, text, sourceLang string) string {
	return t.translate(ctx, text, sourceLang, "en")
}

// FromEnglish translates an outgoing reply into the active language.
func (t *Translator) FromEnglish(ctx context.Context, text, targetLang string) string {
	return t.translate(ctx, text, "en", targetLang)
}

func (t *Translator) translate(ctx context.Context, text, from, to string) string {
	if text == "" || from == to || from == "" || to == "" {
		return text
	}

	translated, err := t.call(ctx, text, from, to)
	if err != nil {
		if t.logger != nil {
			t.logger.Error("translation failed, using original text",
				"from", from, "to", to, "error", err)
		}
		return text
	}
	return translated
}

func (t *Translator) call(ctx context.Context, text, from, to string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", from)
	params.Set("tl", to)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	return parseResponse(body)
}

// parseResponse unpacks the endpoint's nested-array payload:
// [[["translated","original",...],...],...]. Segments are
// concatenated in order.
func parseResponse(body []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("empty response")
	}

	var segments [][]json.RawMessage
	if err := json.Unmarshal(payload[0], &segments); err != nil {
		return "", fmt.Errorf("decode segments: %w", err)
	}

	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var part string
		if err := json.Unmarshal(seg[0], &part); err != nil {
			continue
		}
		sb.WriteString(part)
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("no translation in response")
	}
	return out, nil
}
