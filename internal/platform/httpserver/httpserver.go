package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with timeouts suited to short-lived catalog and
// allocation requests; nothing here streams or long-polls.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
