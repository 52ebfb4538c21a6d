package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Client uploads, fetches and destroys images using the Cloudinary REST API.
type Client struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	// APIBase and DeliveryBase are overridable for tests.
	APIBase      string
	DeliveryBase string
	HTTP         *http.Client
	now          func() time.Time
}

// New creates a Cloudinary client.
func New(cloudName, apiKey, apiSecret, folder string) *Client {
	return &Client{
		CloudName:    cloudName,
		APIKey:       apiKey,
		APISecret:    apiSecret,
		Folder:       folder,
		APIBase:      "https://api.cloudinary.com/v1_1",
		DeliveryBase: "https://res.cloudinary.com",
		HTTP:         &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
	}
}

// UploadResult holds the response from Cloudinary after a successful upload.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int    `json:"bytes"`
}

// Upload uploads raw image bytes under publicID (inside the configured folder).
func (c *Client) Upload(ctx context.Context, data io.Reader, filename, publicID string) (*UploadResult, error) {
	params := c.baseParams()
	if c.Folder != "" {
		params["folder"] = c.Folder
	}
	if publicID != "" {
		params["public_id"] = publicID
	}
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: create form file failed: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return nil, fmt.Errorf("cloudinary: write file failed: %w", err)
	}
	w.Close()

	body, err := c.post(ctx, "upload", w.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	return &result, nil
}

// Destroy deletes the image with publicID.
func (c *Client) Destroy(ctx context.Context, publicID string) error {
	params := c.baseParams()
	params["public_id"] = publicID
	params["signature"] = c.sign(params)

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	body, err := c.post(ctx, "destroy", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	if out.Result != "ok" && out.Result != "not found" {
		return fmt.Errorf("cloudinary: destroy %s: %s", publicID, out.Result)
	}
	return nil
}

// Fetch downloads the delivered image for publicID.
func (c *Client) Fetch(ctx context.Context, publicID string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/%s/image/upload/%s", c.DeliveryBase, c.CloudName, publicID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("cloudinary: fetch %s failed (%d)", publicID, resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, action, contentType string, payload io.Reader) ([]byte, error) {
	u := fmt.Sprintf("%s/%s/image/%s", c.APIBase, c.CloudName, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, payload)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cloudinary: %s failed (%d): %s", action, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) baseParams() map[string]string {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return map[string]string{
		"timestamp": strconv.FormatInt(now().Unix(), 10),
		"api_key":   c.APIKey,
	}
}

// sign computes the Cloudinary API signature from the given params.
// api_key, file and resource_type are not signed.
func (c *Client) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true, "signature": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	payload := strings.Join(pairs, "&") + c.APISecret
	h := sha1.New()
	h.Write([]byte(payload))
	return fmt.Sprintf("%x", h.Sum(nil))
}
