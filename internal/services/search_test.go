package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestDuckDuckGo(t *testing.T, home, links, api http.HandlerFunc) *DuckDuckGo {
	t.Helper()

	d := NewDuckDuckGo(discardLogger())
	if home != nil {
		srv := httptest.NewServer(home)
		t.Cleanup(srv.Close)
		d.homeURL = srv.URL
	}
	if links != nil {
		srv := httptest.NewServer(links)
		t.Cleanup(srv.Close)
		d.linksURL = srv.URL
	}
	if api != nil {
		srv := httptest.NewServer(api)
		t.Cleanup(srv.Close)
		d.apiURL = srv.URL
	}
	return d
}

func TestSearchWeb(t *testing.T) {
	home := func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<script>vqd="abc-123";</script>`))
	}
	links := func(w http.ResponseWriter, r *http.Request) {
		if vqd := r.URL.Query().Get("vqd"); vqd != "abc-123" {
			t.Errorf("vqd = %q, want abc-123", vqd)
		}
		w.Write([]byte(`ddg_spice_light.web({"results":[` +
			`{"t":"Go","u":"https://go.dev/","a":"The Go programming language","i":"go.dev"},` +
			`{"t":"Tour","u":"https://go.dev/tour/","a":"A tour of Go"}]});`))
	}

	d := newTestDuckDuckGo(t, home, links, nil)
	results := d.Search(context.Background(), "golang")

	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].Title != "Go" || results[0].URL != "https://go.dev/" || results[0].Source != "go.dev" {
		t.Errorf("results[0] = %+v", results[0])
	}
	// Source falls back to the URL hostname when the payload has no icon field.
	if results[1].Source != "go.dev" {
		t.Errorf("results[1].Source = %q, want go.dev", results[1].Source)
	}
}

func TestSearchFallsBackToInstantAnswers(t *testing.T) {
	home := func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`vqd='xyz'`))
	}
	links := func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`this is not the expected payload at all`))
	}
	api := func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"Heading":"Gopher","Abstract":"A small rodent.",` +
			`"AbstractURL":"https://example.org/gopher",` +
			`"RelatedTopics":[{"Text":"Pocket gopher - a burrowing rodent","FirstURL":"https://example.org/pocket"}]}`))
	}

	d := newTestDuckDuckGo(t, home, links, api)
	results := d.Search(context.Background(), "gopher")

	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].Title != "Gopher" || results[0].Source != "DuckDuckGo Abstract" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Title != "Pocket gopher" || results[1].Source != "DuckDuckGo Related" {
		t.Errorf("results[1] = %+v", results[1])
	}
}

func TestSearchSyntheticFallback(t *testing.T) {
	// Both providers return garbage; the gateway must still produce a renderable result
	// linking to the original query.
	garbage := func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`%%% completely unparseable %%%`))
	}

	d := newTestDuckDuckGo(t, garbage, garbage, garbage)
	results := d.Search(context.Background(), "weird query")

	if len(results) == 0 {
		t.Fatal("Search() returned no results, want synthetic fallback")
	}
	if !strings.Contains(results[0].URL, "weird+query") {
		t.Errorf("fallback URL = %q, want it to link the original query", results[0].URL)
	}
	if !strings.Contains(results[0].Title, "weird query") {
		t.Errorf("fallback title = %q", results[0].Title)
	}
}

func TestSearchEmptyResultsDegradeToFallback(t *testing.T) {
	home := func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`vqd="ok"`))
	}
	empty := func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`ddg_spice_light.web({"results":[]});`))
	}
	api := func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}

	d := newTestDuckDuckGo(t, home, empty, api)
	results := d.Search(context.Background(), "nothing")

	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want 1 synthetic fallback", len(results))
	}
	if results[0].Description != "Click to search directly on DuckDuckGo" {
		t.Errorf("fallback = %+v", results[0])
	}
}
