// Package transcribe sends clip files to the remote speech-to-text route of
// the proxy and returns the raw transcription text.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"

	"github.com/pinrec/pinrec/internal/session"
)

// ErrTranscription is reported when the remote speech-to-text call fails.
var ErrTranscription = errors.New("transcription failed")

// speechHint primes the model for clips with no speech; the trailing "$" is
// the silence-marker convention the correction step keys on.
const speechHint = "This audio might contain no speech.$"

// Config holds transcription client settings.
type Config struct {
	Endpoint string // full URL of the /whisper route
	Model    string
	Language string // optional hint, e.g. "en"
}

// Client posts clips to the proxy's /whisper route.
type Client struct {
	endpoint   string
	model      string
	language   string
	httpClient *http.Client
}

// NewClient creates a transcription client.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Transcribe uploads the clip and returns its transcription. A response
// without text yields the silence marker rather than an error.
func (c *Client) Transcribe(ctx context.Context, clipPath string) (string, error) {
	f, err := os.Open(clipPath)
	if err != nil {
		return "", fmt.Errorf("%w: open clip: %v", ErrTranscription, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="pin.m4a"`)
	header.Set("Content-Type", "audio/m4a")
	fw, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if err := mw.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if c.language != "" {
		if err := mw.WriteField("language", c.language); err != nil {
			return "", fmt.Errorf("%w: %v", ErrTranscription, err)
		}
	}
	if err := mw.WriteField("prompt", speechHint); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: http %d: %s", ErrTranscription, resp.StatusCode, string(b))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrTranscription, err)
	}
	if out.Text == "" {
		return session.SilenceMarker, nil
	}
	return out.Text, nil
}
