package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/shpitdev/bizcard-pipeline/internal/mocksink"
)

// mock-sink stands in for the real submission endpoint during local
// development: it accepts save requests, remembers them, and can be told
// to reject so failure handling can be exercised end to end.
func main() {
	addr := defaultString("MOCK_SINK_ADDR", ":8090")
	rejectWith := defaultString("MOCK_SINK_REJECT_WITH", "")

	fs := flag.NewFlagSet("mock-sink", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&rejectWith, "reject-with", rejectWith, "Reject every submission with this message (env: MOCK_SINK_REJECT_WITH)")
	_ = fs.Parse(os.Args[1:])

	srv := mocksink.New()
	if strings.TrimSpace(rejectWith) != "" {
		srv.RejectWith(rejectWith)
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-sink listening on %s\n", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
