package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// callTimeout is the hard bound on any single venue HTTP call.
const callTimeout = 5 * time.Second

var httpClient = &http.Client{Timeout: callTimeout}

// httpResponse carries enough of the venue reply to branch on status codes
// without re-reading the body.
type httpResponse struct {
	StatusCode int
	Body       []byte
}

// doRequest performs one HTTP call with the shared bounded-timeout client.
// Non-2xx statuses are returned, not converted to errors; adapters decide
// which statuses mean "not found" versus genuine failure.
func doRequest(ctx context.Context, method, url string, headers map[string]string, body []byte) (*httpResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "http call")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	return &httpResponse{StatusCode: resp.StatusCode, Body: data}, nil
}

// decodeJSON unmarshals a venue response body into out.
func decodeJSON(resp *httpResponse, out interface{}) error {
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errors.Wrapf(err, "decode response (status %d)", resp.StatusCode)
	}
	return nil
}

// is2xx reports a successful HTTP status.
func is2xx(status int) bool {
	return status >= 200 && status < 300
}
