package news

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	domsvc "CoinPull/internal/domain/service"
	pkghttp "CoinPull/pkg/http"
	"CoinPull/pkg/logger"
	"CoinPull/pkg/util"

	"golang.org/x/sync/errgroup"
)

// DefaultFeeds are the crypto news RSS feeds read when none are configured.
var DefaultFeeds = []string{
	"https://cointelegraph.com/rss",
	"https://www.coindesk.com/arc/outboundfeeds/rss/",
	"https://decrypt.co/feed",
	"https://bitcoinmagazine.com/.rss/full/",
}

var ErrAllFeedsFailed = errors.New("news: every feed failed")

type Config struct {
	Feeds       []string
	Lookback    time.Duration
	MaxArticles int
	PerFeed     int
	// Similarity is the title word overlap above which an item is a duplicate.
	Similarity float64
	Timeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Feeds:       DefaultFeeds,
		Lookback:    24 * time.Hour,
		MaxArticles: 100,
		PerFeed:     20,
		Similarity:  0.7,
		Timeout:     15 * time.Second,
	}
}

// Reader fetches and merges RSS 2.0 and Atom feeds.
type Reader struct {
	cfg  Config
	http *pkghttp.Client
	log  *logger.Logger
	now  func() time.Time
}

var _ domsvc.NewsSource = (*Reader)(nil)

func NewReader(cfg Config, log *logger.Logger) *Reader {
	def := DefaultConfig()
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = def.Feeds
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = def.Lookback
	}
	if cfg.MaxArticles <= 0 {
		cfg.MaxArticles = def.MaxArticles
	}
	if cfg.PerFeed <= 0 {
		cfg.PerFeed = def.PerFeed
	}
	if cfg.Similarity <= 0 {
		cfg.Similarity = def.Similarity
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reader{cfg: cfg, http: pkghttp.NewClient(pkghttp.WithTimeout(cfg.Timeout)), log: log, now: time.Now}
}

// FetchNews returns recent items from every feed, deduplicated and newest first.
// A failing feed is skipped; an error is returned only when all of them fail.
func (r *Reader) FetchNews(ctx context.Context) ([]models.NewsItem, error) {
	var (
		mu     sync.Mutex
		all    []models.NewsItem
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, feed := range r.cfg.Feeds {
		feed := feed
		g.Go(func() error {
			items, err := r.fetchFeed(gctx, feed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				r.log.Warn("news feed failed", logger.String("feed", feed), logger.Error(err))
				return nil
			}
			all = append(all, items...)
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 && failed == len(r.cfg.Feeds) {
		return nil, ErrAllFeedsFailed
	}
	out := Select(all, r.now().Add(-r.cfg.Lookback), r.cfg.Similarity, r.cfg.MaxArticles)
	r.log.Debug("news fetched", logger.Int("raw", len(all)), logger.Int("kept", len(out)), logger.Int("failed_feeds", failed))
	return out, nil
}

func (r *Reader) fetchFeed(ctx context.Context, feed string) ([]models.NewsItem, error) {
	var body []byte
	err := r.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     feed,
		Headers: map[string]string{"Accept": "application/rss+xml, application/atom+xml, application/xml, text/xml"},
	}, &body)
	if err != nil {
		return nil, err
	}
	items, err := ParseFeed(body, sourceName(feed))
	if err != nil {
		return nil, err
	}
	if len(items) > r.cfg.PerFeed {
		items = items[:r.cfg.PerFeed]
	}
	return items, nil
}

// Select drops items published before since or without a date, sorts newest
// first, removes near-duplicate titles and caps the result at limit.
func Select(items []models.NewsItem, since time.Time, similarity float64, limit int) []models.NewsItem {
	recent := make([]models.NewsItem, 0, len(items))
	for _, it := range items {
		if it.PublishedAt.IsZero() || it.PublishedAt.Before(since) || strings.TrimSpace(it.Title) == "" {
			continue
		}
		recent = append(recent, it)
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].PublishedAt.After(recent[j].PublishedAt) })

	out := make([]models.NewsItem, 0, len(recent))
	kept := make([]map[string]struct{}, 0, len(recent))
	for _, it := range recent {
		words := wordSet(it.Title)
		dup := false
		for _, k := range kept {
			if Jaccard(words, k) > similarity {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		out = append(out, it)
		kept = append(kept, words)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Jaccard is |a ∩ b| / |a ∪ b|, 0 for two empty sets.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		set[w] = struct{}{}
	}
	return set
}

type feedDoc struct {
	XMLName xml.Name
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Content     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	PubDate     string `xml:"pubDate"`
	Date        string `xml:"http://purl.org/dc/elements/1.1/ date"`
}

type atomEntry struct {
	Title string `xml:"title"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Summary   string `xml:"summary"`
	Content   string `xml:"content"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
}

// ParseFeed reads an RSS 2.0 or Atom document. source names items whose feed has no title.
func ParseFeed(body []byte, source string) ([]models.NewsItem, error) {
	var doc feedDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var items []models.NewsItem
	switch doc.XMLName.Local {
	case "rss":
		src := firstNonEmpty(cleanText(doc.Channel.Title), source)
		for _, it := range doc.Channel.Items {
			published, _ := util.ParseTime(firstNonEmpty(it.PubDate, it.Date))
			items = append(items, models.NewsItem{
				Title:       cleanText(it.Title),
				Summary:     cleanText(it.Description),
				Body:        cleanText(it.Content),
				Link:        strings.TrimSpace(it.Link),
				PublishedAt: published.UTC(),
				Source:      src,
			})
		}
	case "feed":
		src := firstNonEmpty(cleanText(doc.Title), source)
		for _, e := range doc.Entries {
			published, _ := util.ParseTime(firstNonEmpty(e.Published, e.Updated))
			items = append(items, models.NewsItem{
				Title:       cleanText(e.Title),
				Summary:     cleanText(e.Summary),
				Body:        cleanText(e.Content),
				Link:        atomLink(e),
				PublishedAt: published.UTC(),
				Source:      src,
			})
		}
	default:
		return nil, fmt.Errorf("parse feed: unsupported root <%s>", doc.XMLName.Local)
	}
	return items, nil
}

func atomLink(e atomEntry) string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func sourceName(feed string) string {
	u, err := url.Parse(feed)
	if err != nil || u.Host == "" {
		return feed
	}
	return strings.TrimPrefix(u.Host, "www.")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
