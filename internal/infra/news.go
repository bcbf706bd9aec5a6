package infra

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"
	"github.com/mmcdole/gofeed"
)

// titleSimilarityThreshold is how alike two headlines must be to count as
// the same story. Feeds syndicate each other with small wording changes,
// so exact matching misses most duplicates.
const titleSimilarityThreshold = 0.55

// NewsItem is one deduplicated headline.
type NewsItem struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Source    string    `json:"source"`
	Published time.Time `json:"published,omitempty"`
}

// NewsAggregator pulls the configured RSS feeds and merges them into one
// deduplicated list. Pure collaborator: no engine coupling, callers decide
// when to refresh.
type NewsAggregator struct {
	feeds    []string
	maxItems int
	parser   *gofeed.Parser
}

// NewNewsAggregator creates an aggregator over the given feed URLs.
func NewNewsAggregator(feeds []string, maxItems int) *NewsAggregator {
	if maxItems <= 0 {
		maxItems = 20
	}
	return &NewsAggregator{
		feeds:    feeds,
		maxItems: maxItems,
		parser:   gofeed.NewParser(),
	}
}

// Fetch pulls every feed and returns the merged headlines, newest first.
// A failing feed is logged and skipped; the rest still serve.
func (n *NewsAggregator) Fetch(ctx context.Context) []NewsItem {
	var items []NewsItem
	for _, feedURL := range n.feeds {
		feed, err := n.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			slog.Warn("news feed fetch failed",
				slog.String("url", feedURL),
				slog.Any("error", err))
			continue
		}

		source := feed.Title
		if source == "" {
			source = feedURL
		}
		for _, it := range feed.Items {
			item := NewsItem{
				Title:  strings.TrimSpace(it.Title),
				Link:   it.Link,
				Source: source,
			}
			if it.PublishedParsed != nil {
				item.Published = *it.PublishedParsed
			}
			if item.Title != "" {
				items = append(items, item)
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Published.After(items[j].Published)
	})

	deduped := Dedup(items)
	if len(deduped) > n.maxItems {
		deduped = deduped[:n.maxItems]
	}
	return deduped
}

// Dedup drops items whose link was already seen or whose title is close
// enough to an earlier one. Earlier items win, so sort before calling.
func Dedup(items []NewsItem) []NewsItem {
	var out []NewsItem
	seenLinks := make(map[string]bool)

	for _, it := range items {
		if it.Link != "" && seenLinks[it.Link] {
			continue
		}
		if hasSimilarTitle(out, it.Title) {
			continue
		}
		if it.Link != "" {
			seenLinks[it.Link] = true
		}
		out = append(out, it)
	}
	return out
}

func hasSimilarTitle(kept []NewsItem, title string) bool {
	title = strings.ToLower(title)
	for _, k := range kept {
		sim, err := edlib.StringsSimilarity(title, strings.ToLower(k.Title), edlib.Levenshtein)
		if err != nil {
			continue
		}
		if sim >= titleSimilarityThreshold {
			return true
		}
	}
	return false
}
