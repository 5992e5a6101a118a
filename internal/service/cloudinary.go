package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
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

// ProductImageFolder is the Cloudinary folder product images go into.
const ProductImageFolder = "products"

// UploadedImage is where Cloudinary stored an image.
type UploadedImage struct {
	URL      string
	PublicID string
}

// Cloudinary uploads and destroys images through the signed REST API.
type Cloudinary struct {
	apiKey     string
	apiSecret  string
	apiBase    string // https://api.cloudinary.com/v1_1/<cloud>
	httpClient *http.Client
	now        func() time.Time
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Result    string `json:"result"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewCloudinary parses a cloudinary://<key>:<secret>@<cloud> URL.
func NewCloudinary(rawURL string) (*Cloudinary, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse cloudinary url: %w", err)
	}
	if parsed.Scheme != "cloudinary" {
		return nil, fmt.Errorf("invalid cloudinary scheme")
	}
	apiKey := parsed.User.Username()
	apiSecret, ok := parsed.User.Password()
	if !ok {
		return nil, fmt.Errorf("missing cloudinary api secret")
	}
	cloudName := parsed.Hostname()
	if apiKey == "" || apiSecret == "" || cloudName == "" {
		return nil, fmt.Errorf("invalid cloudinary credentials")
	}
	return &Cloudinary{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		apiBase:    "https://api.cloudinary.com/v1_1/" + cloudName,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		now:        time.Now,
	}, nil
}

// UploadImage sends imageSource (a remote URL or a data URI) to the
// products folder.
func (c *Cloudinary) UploadImage(ctx context.Context, imageSource string) (UploadedImage, error) {
	imageSource = strings.TrimSpace(imageSource)
	if imageSource == "" {
		return UploadedImage{}, fmt.Errorf("empty image source")
	}
	resp, err := c.post(ctx, "/image/upload", map[string]string{"folder": ProductImageFolder}, map[string]string{"file": imageSource})
	if err != nil {
		return UploadedImage{}, err
	}
	if resp.SecureURL == "" {
		return UploadedImage{}, fmt.Errorf("cloudinary response missing secure_url")
	}
	return UploadedImage{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}

// DestroyImage deletes an uploaded image.  An already-missing image
// ("not found") is not an error.
func (c *Cloudinary) DestroyImage(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	resp, err := c.post(ctx, "/image/destroy", map[string]string{"public_id": publicID}, nil)
	if err != nil {
		return err
	}
	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy: unexpected result %q", resp.Result)
	}
	return nil
}

// post sends a signed multipart request.  signed fields take part in the
// signature, unsigned ones (the file) do not.
func (c *Cloudinary) post(ctx context.Context, path string, signed, unsigned map[string]string) (cloudinaryResponse, error) {
	fields := map[string]string{"timestamp": strconv.FormatInt(c.now().Unix(), 10)}
	for k, v := range signed {
		fields[k] = v
	}
	fields["signature"] = c.sign(fields)
	fields["api_key"] = c.apiKey
	for k, v := range unsigned {
		fields[k] = v
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		for k, v := range fields {
			if err := writer.WriteField(k, v); err != nil {
				_ = pw.CloseWithError(fmt.Errorf("write %s field: %w", k, err))
				return
			}
		}
		if err := writer.Close(); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("close multipart writer: %w", err))
			return
		}
		_ = pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, pr)
	if err != nil {
		_ = pr.Close()
		return cloudinaryResponse{}, fmt.Errorf("build cloudinary request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cloudinaryResponse{}, fmt.Errorf("cloudinary request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return cloudinaryResponse{}, fmt.Errorf("read cloudinary response: %w", err)
	}
	var parsed cloudinaryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return cloudinaryResponse{}, fmt.Errorf("decode cloudinary response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return cloudinaryResponse{}, fmt.Errorf("cloudinary request failed: %s", parsed.Error.Message)
		}
		return cloudinaryResponse{}, fmt.Errorf("cloudinary request failed with status %d", resp.StatusCode)
	}
	return parsed, nil
}

// sign implements Cloudinary's scheme: sorted k=v pairs joined by '&',
// then the secret appended, SHA-1 hex.
func (c *Cloudinary) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	h := sha1.New() // #nosec G401: cloudinary API signature requires SHA-1.
	_, _ = h.Write([]byte(strings.Join(parts, "&") + c.apiSecret))
	return hex.EncodeToString(h.Sum(nil))
}
