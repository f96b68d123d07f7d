package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Comparison. verdict of the vision-language model on whether two images show
// the same place. confidence is the model's stated 0-100 score.
type Comparison struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Client calls the vision-language comparison service. it is only ever used
// as a secondary filter on candidates that already cleared the embedding
// similarity bar, never as the sole decision source.
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

type compareRequest struct {
	ImageA string `json:"image_a"`
	ImageB string `json:"image_b"`
}

// Compare ask the model whether the live frame and the stored reference image
// depict the same place.
func (c *Client) Compare(ctx context.Context, liveFrame, reference []byte) (Comparison, error) {
	payload, err := json.Marshal(compareRequest{
		ImageA: base64.StdEncoding.EncodeToString(liveFrame),
		ImageB: base64.StdEncoding.EncodeToString(reference),
	})
	if err != nil {
		return Comparison{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compare",
		bytes.NewReader(payload))
	if err != nil {
		return Comparison{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Comparison{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Comparison{}, fmt.Errorf("vlm compare: status %d: %s", resp.StatusCode, msg)
	}

	var cmp Comparison
	if err := json.NewDecoder(resp.Body).Decode(&cmp); err != nil {
		return Comparison{}, fmt.Errorf("vlm compare: decode: %w", err)
	}
	return cmp, nil
}
