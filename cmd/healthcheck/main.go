// Command healthcheck probes the bot's keep-alive endpoint. It exits non-zero
// when the endpoint does not answer 200, for use as a container healthcheck.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// probeURL builds the local URL from HTTP_ADDR or PORT, matching the server's own resolution.
func probeURL() string {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		if p := os.Getenv("PORT"); p != "" {
			addr = ":" + strings.TrimPrefix(p, ":")
		} else {
			addr = ":3000"
		}
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func probe(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	return resp.StatusCode == http.StatusOK
}

func main() {
	client := &http.Client{Timeout: 3 * time.Second}
	if !probe(context.Background(), client, probeURL()) {
		os.Exit(1)
	}
}
