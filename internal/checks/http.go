// Package checks: HTTP probe implementation.
package checks

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hacker-4-good/chroma/pkg/errs"
)

// probeBodyLimit caps how much of a response body is kept as check output.
const probeBodyLimit = 4 << 10

// ProbeHTTP performs an HTTP GET and verifies the response code, returning a
// snippet of the body as check output. If expectedCode is 0, any 2xx is
// accepted.
func ProbeHTTP(ctx context.Context, url string, expectedCode int, timeout time.Duration) (string, error) {
	if url == "" {
		return "", errs.Newf(errs.ErrCheckFailed, "check.http", "url is required")
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > 5 {
				return errs.Newf(errs.ErrCheckFailed, "check.http", "too many redirects")
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrCheckFailed, "check.http")
	}
	req.Header.Set("User-Agent", "pipsmoke-check/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrCheckFailed, "check.http")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	snippet := strings.TrimSpace(string(body))

	if expectedCode != 0 {
		if resp.StatusCode != expectedCode {
			return snippet, errs.Newf(errs.ErrCheckFailed, "check.http",
				"expected status %d, got %d", expectedCode, resp.StatusCode)
		}
	} else {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return snippet, errs.Newf(errs.ErrCheckFailed, "check.http",
				"non-2xx status: %d", resp.StatusCode)
		}
	}
	return snippet, nil
}
