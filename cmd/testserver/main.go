// testserver starts a stub FairMind evaluation service for local development
// and end-to-end testing of the orchestrator.
// Usage: go run ./cmd/testserver
package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"
)

func main() {
	addr := ":8000"
	if v := os.Getenv("FAIRMIND_STUB_ADDR"); v != "" {
		addr = v
	}
	delay := 500 * time.Millisecond
	if v := os.Getenv("FAIRMIND_STUB_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid FAIRMIND_STUB_DELAY: %v", err)
		}
		delay = d
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	stub := newStubService(delay, logger)

	logger.Info("testserver: starting", "addr", addr, "prefix", apiPrefix)
	srv := &http.Server{
		Addr:              addr,
		Handler:           stub.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
