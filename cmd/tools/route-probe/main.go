// cmd/tools/route-probe/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpclient "loangenius/internal/common/http"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "Per-request timeout")
	concurrency := flag.Int("concurrency", 3, "Routes probed in parallel")
	routes := flag.String("routes", strings.Join(DefaultRoutes, ","), "Comma-separated routes to probe")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: route-probe [flags] <base-url>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	baseURL := flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prober := NewProber(httpclient.NewClient(*timeout), baseURL, *concurrency)
	results := prober.Probe(ctx, splitRoutes(*routes))
	if !Report(os.Stdout, baseURL, results).OK() {
		os.Exit(1)
	}
}

func splitRoutes(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !strings.HasPrefix(r, "/") {
			r = "/" + r
		}
		out = append(out, r)
	}
	return out
}
