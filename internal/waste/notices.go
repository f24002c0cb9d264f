package waste

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"homeboard/internal/cache"
	"homeboard/internal/fetcher"
	"homeboard/internal/filter"
	"homeboard/internal/model"
)

// NoticesTTL is how long a fetched news feed stays valid.
const NoticesTTL = 15 * time.Minute

const maxSummary = 300

// DefaultNoticeRules keep items about collections and drop job ads.
var DefaultNoticeRules = []model.Filter{
	{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "abfuhr"},
	{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "tonne"},
	{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "weihnachtsbaum"},
	{Kind: model.FilterIncludeRe, Scope: model.ScopeAll, Value: `verschieb|verschoben|feiertag`},
	{Kind: model.FilterExclude, Scope: model.ScopeTitle, Value: "stellenangebot"},
	{Kind: model.FilterExcludeRe, Scope: model.ScopeTitle, Value: `ausbildung|praktikum`},
}

// NewsFeed reads the waste company's news feed and keeps the items relevant
// to collections.
type NewsFeed struct {
	fetcher *fetcher.Fetcher
	url     string
	rules   *filter.Rules
	log     *slog.Logger
	feeds   *cache.TTL[string, []model.Notice]
}

// NewNewsFeed creates a NewsFeed for url filtered by rules.
func NewNewsFeed(f *fetcher.Fetcher, url string, rules *filter.Rules, log *slog.Logger, opts ...cache.Option) *NewsFeed {
	return &NewsFeed{
		fetcher: f,
		url:     url,
		rules:   rules,
		log:     log,
		feeds:   cache.New[string, []model.Notice]("waste_notices", opts...),
	}
}

// Notices returns matching feed items in feed order.
func (n *NewsFeed) Notices(ctx context.Context) ([]model.Notice, error) {
	return n.feeds.GetOrCompute(ctx, n.url, NoticesTTL, func(ctx context.Context) ([]model.Notice, error) {
		feed, err := n.fetcher.Feed(ctx, n.url)
		if err != nil {
			return nil, fmt.Errorf("get notices: %w", err)
		}

		var notices []model.Notice
		for _, item := range feed.Items {
			if !n.rules.Match(item.Title, item.Description) {
				continue
			}
			summary := []rune(item.Description)
			if len(summary) > maxSummary {
				summary = append(summary[:maxSummary], []rune("...")...)
			}
			notices = append(notices, model.Notice{
				GUID:      fetcher.ItemGUID(item),
				Title:     item.Title,
				Summary:   string(summary),
				Link:      item.Link,
				Published: item.PublishedParsed,
			})
		}
		n.log.Info("retrieved notices", "items", len(feed.Items), "kept", len(notices))
		return notices, nil
	})
}
