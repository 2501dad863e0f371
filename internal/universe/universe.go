package universe

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"finbot/internal/logger"
)

const wikiSP500URL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// Scraper fetches the S&P 500 constituent list from Wikipedia.
type Scraper struct {
	url string
}

// NewScraper targets the live Wikipedia page.
func NewScraper() *Scraper {
	return &Scraper{url: wikiSP500URL}
}

// NewScraperWithURL targets an alternate page, used by tests.
func NewScraperWithURL(pageURL string) *Scraper {
	return &Scraper{url: pageURL}
}

// SP500 returns the constituent tickers in sorted order. Dots in class-share
// symbols are rewritten to dashes to match the quote vendors (BRK.B -> BRK-B).
func (s *Scraper) SP500(ctx context.Context) ([]string, error) {
	logger.Info(ctx, "Fetching S&P 500 constituents", "url", s.url)

	seen := make(map[string]bool)
	tickers := []string{}

	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(s.url)),
		colly.MaxDepth(1),
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	c.OnHTML("table#constituents", func(e *colly.HTMLElement) {
		e.DOM.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
			raw := strings.TrimSpace(row.Find("td").First().Text())
			if raw == "" {
				return
			}
			ticker := strings.ReplaceAll(strings.ToUpper(raw), ".", "-")
			if seen[ticker] {
				return
			}
			seen[ticker] = true
			tickers = append(tickers, ticker)
		})
	})

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = err
	})

	if err := c.Visit(s.url); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", s.url, err)
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, fmt.Errorf("scrape %s: %w", s.url, scrapeErr)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no constituents found at %s", s.url)
	}

	sort.Strings(tickers)
	logger.Info(ctx, "Fetched S&P 500 constituents", "count", len(tickers))
	return tickers, nil
}

// Sample draws n tickers without replacement using a fixed seed, so repeated
// runs over the same list pick the same names. The input is sorted before
// drawing to make the result independent of caller ordering.
func Sample(tickers []string, n int, seed int64) []string {
	sorted := make([]string, len(tickers))
	copy(sorted, tickers)
	sort.Strings(sorted)

	if n >= len(sorted) {
		return sorted
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(sorted))

	out := make([]string, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, sorted[idx])
	}
	sort.Strings(out)
	return out
}

func getDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
