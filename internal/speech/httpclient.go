package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meeting-voice-lab/internal/logging"
)

// cancelOnClose keeps the per-request context alive until the caller has
// finished reading the body. Closing the body releases it.
type cancelOnClose struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Read(p []byte) (int, error) { return c.rc.Read(p) }

func (c *cancelOnClose) Close() error {
	err := c.rc.Close()
	c.cancel()
	return err
}

// PostWithRetries posts JSON to url with retry/backoff and returns the response.
// Caller must close resp.Body; the request deadline stays in effect until then.
func PostWithRetries(ctx context.Context, client *http.Client, url string, body []byte, authToken string, timeout time.Duration, attempts int, correlationID string) (*http.Response, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	for i := 0; i < attempts; i++ {
		ctxReq, cancelReq := context.WithTimeout(ctx, timeout)
		req, rerr := http.NewRequestWithContext(ctxReq, "POST", url, bytes.NewReader(body))
		if rerr != nil {
			logging.Debugw("postWithRetries: new request error", "err", rerr, "correlation_id", correlationID)
			cancelReq()
			return nil, rerr
		}
		req.Header.Set("Content-Type", "application/json")
		if authToken != "" {
			req.Header.Set("Authorization", "Bearer "+authToken)
		}

		var resp *http.Response
		var err error
		if client != nil {
			resp, err = client.Do(req)
		} else {
			tmp := &http.Client{Timeout: timeout}
			resp, err = tmp.Do(req)
		}
		if err != nil {
			cancelReq()
			logging.Debugw("postWithRetries: POST attempt failed", "attempt", i+1, "err", err, "correlation_id", correlationID)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if i < attempts-1 {
				time.Sleep(time.Duration(200*(1<<i)) * time.Millisecond)
				continue
			}
			return nil, err
		}
		resp.Body = &cancelOnClose{rc: resp.Body, cancel: cancelReq}
		return resp, nil
	}
	return nil, fmt.Errorf("no response from postWithRetries")
}
