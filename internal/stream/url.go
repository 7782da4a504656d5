package stream

import (
	"fmt"
	"net/url"
)

// streamPath is the fixed path of the backend's event-stream endpoint.
const streamPath = "/ws"

// StreamURL derives the WebSocket stream URL from the backend's HTTP base URL.
//
// The transform is pure and deterministic: https becomes wss, any other
// scheme becomes ws, the path is replaced with exactly /ws, and any query
// or fragment is stripped.
//
//	http://127.0.0.1:8765        -> ws://127.0.0.1:8765/ws
//	https://example.test/api?x=1 -> wss://example.test/ws
func StreamURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base URL %q has no host", baseURL)
	}

	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = streamPath
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}
