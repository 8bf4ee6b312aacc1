// Package netx holds small HTTP helpers used by the command-line tools.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// CheckHealth issues GET url and expects 200 OK. On any other status the
// error carries the status line and the response body.
func CheckHealth(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("health check failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}
