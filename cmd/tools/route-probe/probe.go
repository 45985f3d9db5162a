// cmd/tools/route-probe/probe.go
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	httpclient "loangenius/internal/common/http"
)

// DefaultRoutes are the browser routes that must fall back to the app shell
// plus the two proxied partner prefixes.
var DefaultRoutes = []string{
	"/",
	"/questionnaire",
	"/loan-offers",
	"/non-existent-route",
	"/api/uat/test",
	"/api/external/test",
}

// Result is the outcome of probing one route.
type Result struct {
	Route      string
	StatusCode int
	HTML       bool
	Err        error
}

// API reports whether the route goes to a proxied backend rather than the app.
func (r Result) API() bool {
	return strings.HasPrefix(r.Route, "/api/")
}

// Success is a 2xx or 3xx answer.
func (r Result) Success() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 400
}

// Passed applies the per-kind rule: app routes must also serve HTML.
func (r Result) Passed() bool {
	if r.API() {
		return r.Success()
	}
	return r.Success() && r.HTML
}

type Prober struct {
	client      *httpclient.Client
	baseURL     string
	concurrency int
}

func NewProber(client *httpclient.Client, baseURL string, concurrency int) *Prober {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Prober{client: client, baseURL: strings.TrimRight(baseURL, "/"), concurrency: concurrency}
}

// Probe requests every route and returns the results in route order.
// Transport failures are recorded on the result, not returned.
func (p *Prober) Probe(ctx context.Context, routes []string) []Result {
	results := make([]Result, len(routes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, route := range routes {
		g.Go(func() error {
			results[i] = p.probe(ctx, route)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Prober) probe(ctx context.Context, route string) Result {
	res := Result{Route: route}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+route, nil)
	if err != nil {
		res.Err = err
		return res
	}
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Err = fmt.Errorf("failed to read body: %w", err)
		return res
	}
	res.StatusCode = resp.StatusCode
	res.HTML = isHTML(body)
	return res
}

func isHTML(body []byte) bool {
	lower := bytes.ToLower(body)
	return bytes.Contains(lower, []byte("<!doctype html>")) || bytes.Contains(lower, []byte("<html"))
}

// Summary counts what passed.
type Summary struct {
	AppPassed, AppTotal int
	APIPassed, APITotal int
	Errors              int
}

func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		if r.Err != nil {
			s.Errors++
		}
		if r.API() {
			s.APITotal++
			if r.Passed() {
				s.APIPassed++
			}
			continue
		}
		s.AppTotal++
		if r.Passed() {
			s.AppPassed++
		}
	}
	return s
}

func (s Summary) OK() bool {
	return s.Errors == 0 && s.AppPassed == s.AppTotal && s.APIPassed == s.APITotal
}

// Report writes one line per route and the summary.
func Report(w io.Writer, baseURL string, results []Result) Summary {
	fmt.Fprintf(w, "Probing %s\n\n", baseURL)
	for _, r := range results {
		mark := "PASS"
		if !r.Passed() {
			mark = "FAIL"
		}
		kind := "app"
		if r.API() {
			kind = "api"
		}
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "%s %-22s %s  error: %v\n", mark, r.Route, kind, r.Err)
		case !r.API() && r.Success() && !r.HTML:
			fmt.Fprintf(w, "%s %-22s %s  %d, no HTML shell\n", mark, r.Route, kind, r.StatusCode)
		default:
			fmt.Fprintf(w, "%s %-22s %s  %d\n", mark, r.Route, kind, r.StatusCode)
		}
	}

	s := Summarize(results)
	fmt.Fprintf(w, "\nApp routes: %d/%d\nAPI routes: %d/%d\nErrors: %d\n", s.AppPassed, s.AppTotal, s.APIPassed, s.APITotal, s.Errors)
	if s.OK() {
		fmt.Fprintln(w, "All routes passed.")
	} else {
		fmt.Fprintln(w, "Some routes failed; check the deployment's rewrite rules.")
	}
	return s
}
