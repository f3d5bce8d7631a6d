package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// SearchResult is the normalized shape every search provider response is converted into.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
}

// DuckDuckGo issues text queries against DuckDuckGo and normalizes the results. The primary
// provider is the undocumented d.js links endpoint; on parse failure it degrades to the
// instant-answer API, and if that also yields nothing, to a single synthetic result pointing
// at the provider's own query URL. The caller therefore always has something renderable.
type DuckDuckGo struct {
	client *http.Client

	// Endpoint hosts, overridable in tests.
	homeURL  string
	linksURL string
	apiURL   string

	logger *slog.Logger
}

const searchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36"

var vqdPattern = regexp.MustCompile(`vqd=["']([^"']+)["']`)

// NewDuckDuckGo creates a new DuckDuckGo search gateway.
func NewDuckDuckGo(logger *slog.Logger) *DuckDuckGo {
	return &DuckDuckGo{
		client:   &http.Client{},
		homeURL:  "https://duckduckgo.com",
		linksURL: "https://links.duckduckgo.com",
		apiURL:   "https://api.duckduckgo.com",
		logger:   logger.With(slog.String("module", "search")),
	}
}

// Search returns the full, unranked result set for query. Bounding the list to a display
// count is the caller's concern. The returned slice is never empty: unparseable or empty
// upstream payloads degrade to the fallback chain described on the type.
func (d *DuckDuckGo) Search(ctx context.Context, query string) []SearchResult {
	results, err := d.searchWeb(ctx, query)
	if err != nil {
		d.logger.Warn("Web search failed, trying instant answers",
			slog.String("query", query),
			slog.String("err", err.Error()),
		)
		results, err = d.searchInstant(ctx, query)
		if err != nil {
			d.logger.Warn("Instant answer search failed",
				slog.String("query", query),
				slog.String("err", err.Error()),
			)
			return fallbackResults(query)
		}
	}

	if len(results) == 0 {
		results, err = d.searchInstant(ctx, query)
		if err != nil || len(results) == 0 {
			return fallbackResults(query)
		}
	}
	return results
}

type ddgLinksResponse struct {
	Results []ddgLinkResult `json:"results"`
}

type ddgLinkResult struct {
	Title       string `json:"t"`
	URL         string `json:"u"`
	Description string `json:"a"`
	Icon        string `json:"i"`
}

// searchWeb queries the d.js links endpoint. It first fetches the query page to extract the
// vqd token the endpoint requires, then unwraps the JavaScript-wrapped payload.
func (d *DuckDuckGo) searchWeb(ctx context.Context, query string) ([]SearchResult, error) {
	page, err := d.get(ctx, d.homeURL+"/?q="+url.QueryEscape(query), "")
	if err != nil {
		return nil, fmt.Errorf("error fetching search page: %w", err)
	}

	m := vqdPattern.FindStringSubmatch(string(page))
	if m == nil {
		return nil, fmt.Errorf("could not extract vqd parameter")
	}

	params := url.Values{
		"q":   {query},
		"kl":  {"wt-wt"},
		"dl":  {"en"},
		"o":   {"json"},
		"vqd": {m[1]},
		"p":   {"1"},
	}
	body, err := d.get(ctx, d.linksURL+"/d.js?"+params.Encode(), d.homeURL+"/")
	if err != nil {
		return nil, fmt.Errorf("error fetching results: %w", err)
	}

	// The payload is a JavaScript call, not bare JSON: ddg_spice_light.web({...});
	cleaned := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(string(body)),
		"ddg_spice_light.web("), ");")

	var res ddgLinksResponse
	if err := json.Unmarshal([]byte(cleaned), &res); err != nil {
		return nil, fmt.Errorf("error parsing results: %w", err)
	}

	results := make([]SearchResult, 0, len(res.Results))
	for _, r := range res.Results {
		if r.URL == "" {
			continue
		}
		source := r.Icon
		if source == "" {
			if u, err := url.Parse(r.URL); err == nil {
				source = u.Hostname()
			}
		}
		title := r.Title
		if title == "" {
			title = "No title"
		}
		results = append(results, SearchResult{
			Title:       title,
			URL:         r.URL,
			Description: r.Description,
			Source:      source,
		})
	}
	return results, nil
}

type ddgInstantResponse struct {
	Heading       string            `json:"Heading"`
	Abstract      string            `json:"Abstract"`
	AbstractURL   string            `json:"AbstractURL"`
	RelatedTopics []ddgRelatedTopic `json:"RelatedTopics"`
}

type ddgRelatedTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

// searchInstant queries the simpler instant-answer API, which needs no token.
func (d *DuckDuckGo) searchInstant(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"no_redirect":   {"1"},
		"skip_disambig": {"1"},
	}
	body, err := d.get(ctx, d.apiURL+"/?"+params.Encode(), "")
	if err != nil {
		return nil, fmt.Errorf("error fetching instant answers: %w", err)
	}

	var res ddgInstantResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("error parsing instant answers: %w", err)
	}

	var results []SearchResult
	if res.Abstract != "" {
		abstractURL := res.AbstractURL
		if abstractURL == "" {
			abstractURL = queryURL(query)
		}
		title := res.Heading
		if title == "" {
			title = "DuckDuckGo Result"
		}
		results = append(results, SearchResult{
			Title:       title,
			URL:         abstractURL,
			Description: res.Abstract,
			Source:      "DuckDuckGo Abstract",
		})
	}

	for _, topic := range res.RelatedTopics {
		if topic.Text == "" || topic.FirstURL == "" {
			continue
		}
		title, _, _ := strings.Cut(topic.Text, " - ")
		if title == "" {
			title = "Related Topic"
		}
		results = append(results, SearchResult{
			Title:       title,
			URL:         topic.FirstURL,
			Description: topic.Text,
			Source:      "DuckDuckGo Related",
		})
	}
	return results, nil
}

func (d *DuckDuckGo) get(ctx context.Context, rawURL, referer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func queryURL(query string) string {
	return "https://duckduckgo.com/?q=" + url.QueryEscape(query)
}

func fallbackResults(query string) []SearchResult {
	return []SearchResult{
		{
			Title:       fmt.Sprintf("Search for %q on DuckDuckGo", query),
			URL:         queryURL(query),
			Description: "Click to search directly on DuckDuckGo",
		},
	}
}
