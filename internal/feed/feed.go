// Package feed fetches the blog's syndication feed and formats posts for
// delivery.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// ErrEmptyFeed reports a feed that parsed fine but contains no entries.
var ErrEmptyFeed = errors.New("feed has no entries")

// Item is one feed entry. Fields may be empty; FormatPost substitutes
// placeholders. Items compare structurally, so two fetches of the same
// post are equal.
type Item struct {
	Title       string
	Description string
	Link        string
}

// Gateway fetches the most recent entry of a single feed URL.
type Gateway struct {
	url    string
	client *http.Client
	parser *gofeed.Parser
}

// New creates a gateway for url. timeout bounds the whole HTTP exchange;
// zero picks a sane default.
func New(url string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		url:    url,
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
	}
}

// Latest returns the first (most recent) entry of the feed.
func (g *Gateway) Latest(ctx context.Context) (Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return Item{}, fmt.Errorf("feed: build request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return Item{}, fmt.Errorf("feed: fetch %s: %w", g.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Item{}, fmt.Errorf("feed: fetch %s: unexpected status %s", g.url, resp.Status)
	}

	parsed, err := g.parser.Parse(resp.Body)
	if err != nil {
		return Item{}, fmt.Errorf("feed: parse %s: %w", g.url, err)
	}
	if len(parsed.Items) == 0 {
		return Item{}, fmt.Errorf("feed: %s: %w", g.url, ErrEmptyFeed)
	}
	return fromGofeed(parsed.Items[0]), nil
}

func fromGofeed(it *gofeed.Item) Item {
	if it == nil {
		return Item{}
	}
	return Item{
		Title:       it.Title,
		Description: it.Description,
		Link:        it.Link,
	}
}
