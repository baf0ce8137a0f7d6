package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meeting-voice-lab/internal/logging"
)

// TTSClient performs text->audio synthesis against an external HTTP service.
// The service returns raw PCM in the response body.
type TTSClient struct {
	URL       string
	AuthToken string
	Client    *http.Client
	Timeout   time.Duration
	Attempts  int
}

func NewTTSClient(url, authToken string, timeout time.Duration) *TTSClient {
	return &TTSClient{
		URL:       url,
		AuthToken: authToken,
		Client:    &http.Client{},
		Timeout:   timeout,
		Attempts:  2,
	}
}

// Synthesize sends text to the TTS URL and returns the audio bytes.
func (t *TTSClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if t == nil || t.URL == "" {
		return nil, fmt.Errorf("tts client not configured")
	}
	payload := map[string]string{"text": text}
	if voice != "" {
		payload["voice"] = voice
	}
	body, _ := json.Marshal(payload)
	resp, err := PostWithRetries(ctx, t.Client, t.URL, body, t.AuthToken, t.Timeout, t.Attempts, "")
	if err != nil {
		logging.Debugw("tts: POST failed", "err", err)
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		_, _ = io.ReadAll(resp.Body)
		logging.Warnw("tts: returned non-2xx", "status", resp.StatusCode)
		return nil, fmt.Errorf("tts returned status %d", resp.StatusCode)
	}
	audioBytes, rerr := io.ReadAll(resp.Body)
	if rerr != nil {
		logging.Debugw("tts: failed to read response body", "err", rerr)
		return nil, rerr
	}
	return audioBytes, nil
}
