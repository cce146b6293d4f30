// Package driver talks to the screen-automation agent over HTTP. The
// agent owns the actual OCR and input synthesis; this client exposes
// it as the orchestrator's capture, locate, and dispatch
// collaborators.
package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chatpilot/chatpilot/internal/orchestrator"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type captureTextRequest struct {
	Region   orchestrator.Region `json:"region"`
	Language string              `json:"language"`
}

type captureTextResponse struct {
	Text string `json:"text"`
}

func (c *Client) CaptureText(ctx context.Context, region orchestrator.Region, language string) (string, error) {
	var resp captureTextResponse
	if err := c.post(ctx, "/capture/text", captureTextRequest{Region: region, Language: language}, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

type captureAmountRequest struct {
	Region orchestrator.Region `json:"region"`
}

type captureAmountResponse struct {
	Amount int `json:"amount"`
}

func (c *Client) CaptureAmount(ctx context.Context, region orchestrator.Region) (int, error) {
	var resp captureAmountResponse
	if err := c.post(ctx, "/capture/amount", captureAmountRequest{Region: region}, &resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

type locateRequest struct {
	Template   string               `json:"template"`
	Region     *orchestrator.Region `json:"region,omitempty"`
	Confidence float64              `json:"confidence"`
}

type locateResponse struct {
	Found bool               `json:"found"`
	Point orchestrator.Point `json:"point"`
}

func (c *Client) Locate(ctx context.Context, template string, region *orchestrator.Region, confidence float64) (orchestrator.Point, bool, error) {
	var resp locateResponse
	req := locateRequest{Template: template, Region: region, Confidence: confidence}
	if err := c.post(ctx, "/locate", req, &resp); err != nil {
		return orchestrator.Point{}, false, err
	}
	return resp.Point, resp.Found, nil
}

type clickRequest struct {
	Point orchestrator.Point `json:"point"`
}

func (c *Client) Click(ctx context.Context, p orchestrator.Point) error {
	return c.post(ctx, "/click", clickRequest{Point: p}, nil)
}

type typeRequest struct {
	Text string `json:"text"`
	Send bool   `json:"send"`
}

func (c *Client) TypeAndSend(ctx context.Context, text string) error {
	return c.post(ctx, "/type", typeRequest{Text: text, Send: true}, nil)
}

func (c *Client) Type(ctx context.Context, text string) error {
	return c.post(ctx, "/type", typeRequest{Text: text}, nil)
}

func (c *Client) EraseInput(ctx context.Context) error {
	return c.post(ctx, "/erase", struct{}{}, nil)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("driver call %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("driver %s: status %d: %s", path, resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
