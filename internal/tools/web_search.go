package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"google.golang.org/genai"
)

// DefaultSearchURL is the DuckDuckGo HTML endpoint; it needs no API key.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

// SearchResult is one web result.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearchArgs are the arguments of web_search.
type WebSearchArgs struct {
	Query      string
	MaxResults int
}

func (WebSearchArgs) ToolName() string { return "web_search" }

// WebSearchTool searches the web through DuckDuckGo's HTML interface.
type WebSearchTool struct {
	env *Env
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for documentation, release notes or error messages. Returns titles, URLs and snippets."
}

func (t *WebSearchTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {
					Type:        genai.TypeString,
					Description: "Search query",
				},
				"max_results": {
					Type:        genai.TypeInteger,
					Description: "Maximum number of results (default 5)",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *WebSearchTool) Decode(raw map[string]any) (Args, error) {
	query, err := RequireString(raw, "query", "q")
	if err != nil {
		return nil, err
	}
	limit, err := GetIntDefault(raw, "max_results", t.env.Limits.WebResults)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	return WebSearchArgs{Query: query, MaxResults: min(limit, 20)}, nil
}

func (t *WebSearchTool) Execute(ctx context.Context, a Args) Result {
	args := a.(WebSearchArgs)

	form := url.Values{"q": {args.Query}, "b": {""}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.env.SearchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return NewErrorResult(fmt.Sprintf("building search request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) forge")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.env.HTTPClient.Do(req)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("web search failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewErrorResult(fmt.Sprintf("web search failed: HTTP %d", resp.StatusCode))
	}

	results, err := parseSearchResults(io.LimitReader(resp.Body, 2<<20), args.MaxResults)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("parsing search results: %v", err))
	}
	if len(results) == 0 {
		return NewSuccessResult("No web results found for: " + args.Query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Web results for: %s\n", args.Query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return NewSuccessResult(strings.TrimRight(b.String(), "\n"))
}

// parseSearchResults extracts results from a DuckDuckGo HTML page.
func parseSearchResults(r io.Reader, limit int) ([]SearchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "result") {
			if res, ok := parseResult(n); ok {
				results = append(results, res)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func parseResult(n *html.Node) (SearchResult, bool) {
	var res SearchResult
	var href string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a") && res.Title == "":
				res.Title = nodeText(n)
				href = attr(n, "href")
				return
			case hasClass(n, "result__snippet") && res.Snippet == "":
				res.Snippet = nodeText(n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	res.URL = resultURL(href)
	if res.Title == "" || res.URL == "" {
		return SearchResult{}, false
	}
	return res, true
}

// resultURL unwraps DuckDuckGo's redirect links (/l/?uddg=<target>).
func resultURL(href string) string {
	if href == "" {
		return ""
	}
	if u, err := url.Parse(href); err == nil {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
