// Package websockettest provides dial helpers for exercising the sculptor's
// WebSocket endpoint from integration tests.
package websockettest

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// Dial connects to a sculptor /ws endpoint with the given role, converting an
// http(s) test-server URL into its ws(s) equivalent. The connection is closed
// automatically when the test finishes.
func Dial(t *testing.T, serverURL, role string, compress bool) *websocket.Conn {
	t.Helper()

	//1.- Rewrite the httptest scheme into a websocket scheme.
	parsed, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("parse server url %q: %v", serverURL, err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	if !strings.HasSuffix(parsed.Path, "/ws") {
		parsed.Path = "/ws"
	}
	query := parsed.Query()
	query.Set("role", role)
	if compress {
		query.Set("compress", "snappy")
	}
	parsed.RawQuery = query.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(parsed.String(), http.Header{})
	if err != nil {
		t.Fatalf("dial %s: %v", parsed.String(), err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
