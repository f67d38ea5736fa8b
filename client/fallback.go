package client

import (
	"context"
	"net/http"
	"strings"
)

// do resolves a request against a list of candidate paths. The rules,
// in order:
//
//   - cookie-path candidates (anything outside /api) get the CSRF
//     cookie bootstrapped before their attempt; /api candidates are
//     bearer territory and skip the handshake
//   - a candidate is abandoned only when the transport produced no
//     response at all; the next candidate is then tried
//   - any HTTP response settles the request, error statuses included:
//     a 500 from the first candidate wins over anything the second
//     might have returned
//   - a 419 is retried exactly once against the same candidate after a
//     token refresh; the retry happens even when the refresh itself
//     fails, and whatever it produces settles the request
func (c *Client) do(ctx context.Context, method string, paths []string, body interface{}) (*http.Response, error) {
	for _, path := range paths {
		if !strings.HasPrefix(path, "/api/") {
			if err := c.EnsureCSRF(ctx); err != nil {
				c.log.WithError(err).Debug("csrf bootstrap failed, proceeding without token")
			}
		}

		resp, err := c.Send(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			c.log.WithField("path", path).Debug("no response, trying next candidate")
			continue
		}

		if resp.StatusCode == statusPageExpired {
			resp.Body.Close()
			if err := c.RefreshCSRF(ctx); err != nil {
				c.log.WithError(err).Debug("token refresh failed, retrying without a fresh token")
			}
			retried, err := c.Send(ctx, method, path, body)
			if err != nil {
				return nil, err
			}
			if retried == nil {
				continue
			}
			return retried, nil
		}
		return resp, nil
	}
	return nil, nil
}
