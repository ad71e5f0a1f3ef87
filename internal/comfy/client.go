// Package comfy is a minimal client for the ComfyUI HTTP API: it submits a
// text-to-image workflow, polls the history endpoint until the render
// finishes, then downloads the output image.
package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const negativePrompt = "photograph, photo, realistic, 3d render, animal, cat, dog, bear, lion, eagle, wolf, fox, owl, bird, furry, anthropomorphic, cartoon animal, animal character, blurry, deformed, ugly, watermark, signature, black and white, grayscale, monochrome, sepia, desaturated"

const (
	defaultSteps        = 20
	defaultPollInterval = time.Second
	// 300 polls at the default interval is roughly five minutes per panel.
	defaultMaxPolls = 300

	panelWidth  = 512
	panelHeight = 512
)

type Options struct {
	BaseURL      string
	Checkpoint   string
	Steps        int
	HTTPClient   *http.Client
	PollInterval time.Duration
	MaxPolls     int
}

// Client renders panels through a ComfyUI server.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	checkpoint   string
	steps        int
	pollInterval time.Duration
	maxPolls     int
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "http://localhost:8188"
	}
	steps := opts.Steps
	if steps <= 0 {
		steps = defaultSteps
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = defaultMaxPolls
	}
	return &Client{
		httpClient:   client,
		baseURL:      base,
		checkpoint:   opts.Checkpoint,
		steps:        steps,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
	}
}

type queueResponse struct {
	PromptID string `json:"prompt_id"`
}

type historyImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type historyEntry struct {
	Outputs map[string]struct {
		Images []historyImage `json:"images"`
	} `json:"outputs"`
}

// Render submits prompt and blocks until the image is available or the poll
// budget runs out.
func (c *Client) Render(ctx context.Context, prompt string) ([]byte, error) {
	promptID, err := c.queue(ctx, prompt)
	if err != nil {
		return nil, err
	}
	for i := 0; i < c.maxPolls; i++ {
		img, done, err := c.poll(ctx, promptID)
		if err != nil {
			return nil, err
		}
		if done {
			return c.download(ctx, img)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return nil, errors.New("comfy: generation timed out")
}

func (c *Client) queue(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{"prompt": c.workflow(prompt)})
	if err != nil {
		return "", fmt.Errorf("comfy: encode workflow: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("comfy: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("comfy: queue prompt: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("comfy: queue prompt: status %d", resp.StatusCode)
	}
	var queued queueResponse
	if err := json.NewDecoder(resp.Body).Decode(&queued); err != nil {
		return "", fmt.Errorf("comfy: decode queue response: %w", err)
	}
	if queued.PromptID == "" {
		return "", errors.New("comfy: queue response missing prompt_id")
	}
	return queued.PromptID, nil
}

func (c *Client) poll(ctx context.Context, promptID string) (historyImage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+promptID, nil)
	if err != nil {
		return historyImage{}, false, fmt.Errorf("comfy: build history request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return historyImage{}, false, fmt.Errorf("comfy: fetch history: %w", err)
	}
	defer resp.Body.Close()
	var history map[string]historyEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return historyImage{}, false, fmt.Errorf("comfy: decode history: %w", err)
	}
	entry, ok := history[promptID]
	if !ok {
		return historyImage{}, false, nil
	}
	output, ok := entry.Outputs["9"]
	if !ok || len(output.Images) == 0 {
		return historyImage{}, false, nil
	}
	return output.Images[0], true, nil
}

func (c *Client) download(ctx context.Context, img historyImage) ([]byte, error) {
	params := url.Values{}
	params.Set("filename", img.Filename)
	params.Set("subfolder", img.Subfolder)
	params.Set("type", "output")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/view?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("comfy: build view request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("comfy: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("comfy: download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("comfy: read image: %w", err)
	}
	return data, nil
}

// workflow builds the checkpoint -> KSampler -> VAE decode node graph. Node
// ids match the server-side SaveImage output ("9") the poller looks for.
func (c *Client) workflow(prompt string) map[string]any {
	seed := rand.Int63n(1<<31-1) + 1
	return map[string]any{
		"4": map[string]any{
			"class_type": "CheckpointLoaderSimple",
			"inputs":     map[string]any{"ckpt_name": c.checkpoint},
		},
		"5": map[string]any{
			"class_type": "EmptyLatentImage",
			"inputs":     map[string]any{"width": panelWidth, "height": panelHeight, "batch_size": 1},
		},
		"6": map[string]any{
			"class_type": "CLIPTextEncode",
			"inputs":     map[string]any{"text": prompt, "clip": []any{"4", 1}},
		},
		"7": map[string]any{
			"class_type": "CLIPTextEncode",
			"inputs":     map[string]any{"text": negativePrompt, "clip": []any{"4", 1}},
		},
		"10": map[string]any{
			"class_type": "FluxGuidance",
			"inputs":     map[string]any{"guidance": 3.5, "conditioning": []any{"6", 0}},
		},
		"3": map[string]any{
			"class_type": "KSampler",
			"inputs": map[string]any{
				"seed": seed, "steps": c.steps, "cfg": 1.0, "sampler_name": "euler",
				"scheduler": "simple", "denoise": 1, "model": []any{"4", 0},
				"positive": []any{"10", 0}, "negative": []any{"7", 0}, "latent_image": []any{"5", 0},
			},
		},
		"8": map[string]any{
			"class_type": "VAEDecode",
			"inputs":     map[string]any{"samples": []any{"3", 0}, "vae": []any{"4", 2}},
		},
		"9": map[string]any{
			"class_type": "SaveImage",
			"inputs":     map[string]any{"filename_prefix": "api_panel", "images": []any{"8", 0}},
		},
	}
}
