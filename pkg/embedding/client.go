package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rizkia-p/wayfindr/pkg/datastructure"
)

// Client talks to the CLIP HTTP gateway, which bridges to the gRPC CLIP
// server. the gateway exposes one encode endpoint per extraction variant plus
// a foreground-person detector; all of them take a multipart image upload.
//
// the gateway round-trip takes seconds, callers budget for that with the
// generous fixed timeout. there is deliberately no retry here: a failed
// extraction is substituted with the zero vector by the localizer.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type encodeResponse struct {
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

type detectResponse struct {
	Count      int       `json:"count"`
	Detections []float64 `json:"detections"`
}

// Encode raw image embedding.
func (c *Client) Encode(ctx context.Context, image []byte) (datastructure.Vector, error) {
	return c.encode(ctx, "/encode", image)
}

// EncodeCleaned background-cleaned embedding, foreground clutter removed
// before extraction.
func (c *Client) EncodeCleaned(ctx context.Context, image []byte) (datastructure.Vector, error) {
	return c.encode(ctx, "/encode/cleaned", image)
}

// EncodeNavigation navigation-tuned embedding. with inpaintPersons the gateway
// paints out detected foreground people before encoding, which keeps a crowded
// corridor comparable against the empty reference recording.
func (c *Client) EncodeNavigation(ctx context.Context, image []byte, inpaintPersons bool) (datastructure.Vector, error) {
	path := "/encode/navigation"
	if inpaintPersons {
		path += "?inpaint=true"
	}
	return c.encode(ctx, path, image)
}

func (c *Client) encode(ctx context.Context, path string, image []byte) (datastructure.Vector, error) {
	body, contentType, err := imageForm(image)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding gateway %s: status %d: %s", path, resp.StatusCode, msg)
	}

	var enc encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&enc); err != nil {
		return nil, fmt.Errorf("embedding gateway %s: decode: %w", path, err)
	}
	if len(enc.Embedding) == 0 || (enc.Dimensions > 0 && len(enc.Embedding) != enc.Dimensions) {
		return nil, fmt.Errorf("embedding gateway %s: malformed embedding (%d values, %d dimensions)",
			path, len(enc.Embedding), enc.Dimensions)
	}
	return datastructure.Vector(enc.Embedding), nil
}

// DetectPersons count of foreground people in the frame plus per-detection
// confidences, used to pick the dynamic match threshold.
func (c *Client) DetectPersons(ctx context.Context, image []byte) (int, []float64, error) {
	body, contentType, err := imageForm(image)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect/persons", body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, nil, fmt.Errorf("person detector: status %d: %s", resp.StatusCode, msg)
	}

	var det detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&det); err != nil {
		return 0, nil, fmt.Errorf("person detector: decode: %w", err)
	}
	return det.Count, det.Detections, nil
}

// Health probe the gateway's connection to the CLIP server.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding gateway unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func imageForm(image []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
