// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for relay-style calls (AI gateway).
// Latency-sensitive clients (pinning, custody) carry their own tighter
// timeouts.
var HTTPClient = &http.Client{
	Timeout: 60 * time.Second,
}
