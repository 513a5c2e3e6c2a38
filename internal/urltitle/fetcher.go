// Package urltitle posts the titles of links mentioned in channel messages.
package urltitle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yourusername/kukisti/internal/output"
	"github.com/yourusername/kukisti/internal/upstream"
)

const (
	// MaxTitleLength is the longest title sent, ellipsis included
	MaxTitleLength = 300

	// MaxURLsPerMessage bounds how many links of one message are looked up
	MaxURLsPerMessage = 3
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// skippedHosts block scraping or serve no useful title
var skippedHosts = []string{"x.com", "twitter.com", "reddit.com"}

// Sender delivers a title to a channel
type Sender interface {
	SendMessage(ctx context.Context, channel, text string) error
}

// TitleStore caches fetched titles
type TitleStore interface {
	GetCachedTitle(ctx context.Context, url string, ttl time.Duration) (string, bool, error)
	StoreTitle(ctx context.Context, url, title string) error
}

// Fetcher detects links in messages and replies with their titles
type Fetcher struct {
	client *upstream.Client
	sender Sender
	store  TitleStore
	ttl    time.Duration
	logger output.Logger

	oembedURL string
}

// New creates a fetcher. store may be nil to disable caching.
func New(client *upstream.Client, sender Sender, store TitleStore, ttl time.Duration, logger output.Logger) *Fetcher {
	return &Fetcher{
		client:    client,
		sender:    sender,
		store:     store,
		ttl:       ttl,
		logger:    logger,
		oembedURL: "https://www.youtube.com/oembed",
	}
}

// ExtractURLs returns the distinct http(s) links in text, in order
func ExtractURLs(text string) []string {
	found := urlPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(found))
	urls := found[:0]
	for _, u := range found {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// DetectAndHandle looks up every link in body and sends at most one title per
// link. Failures are logged, never sent to the channel.
func (f *Fetcher) DetectAndHandle(ctx context.Context, nick, channel, body string) {
	urls := ExtractURLs(body)
	if len(urls) > MaxURLsPerMessage {
		urls = urls[:MaxURLsPerMessage]
	}

	for _, raw := range urls {
		if ctx.Err() != nil {
			return
		}

		title, err := f.Title(ctx, raw)
		if err != nil {
			f.logger.Warning("Title lookup for %s from %s failed: %v", raw, nick, err)
			continue
		}
		if title == "" {
			continue
		}

		if err := f.sender.SendMessage(ctx, channel, title); err != nil {
			f.logger.Warning("Failed to send title to %s: %v", channel, err)
			return
		}
	}
}

// Title returns the display title for a link, or "" when the link is skipped
// or the page has none
func (f *Fetcher) Title(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", raw)
	}
	host := strings.ToLower(u.Hostname())
	if matchesHost(host, skippedHosts...) {
		return "", nil
	}

	if f.store != nil {
		title, ok, err := f.store.GetCachedTitle(ctx, raw, f.ttl)
		if err != nil {
			f.logger.Warning("Title cache read failed: %v", err)
		} else if ok {
			return title, nil
		}
	}

	var title string
	if matchesHost(host, "youtube.com", "youtu.be") {
		title, err = f.youtubeTitle(ctx, u)
	} else {
		title, err = f.pageTitle(ctx, raw)
	}
	if err != nil {
		return "", err
	}

	title = Trim(title)
	if title == "" {
		return "", nil
	}

	if f.store != nil {
		if err := f.store.StoreTitle(context.WithoutCancel(ctx), raw, title); err != nil {
			f.logger.Warning("Title cache write failed: %v", err)
		}
	}
	return title, nil
}

type oembedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

func (f *Fetcher) youtubeTitle(ctx context.Context, u *url.URL) (string, error) {
	id := youtubeVideoID(u)
	if id == "" {
		return "", errors.New("invalid YouTube URL")
	}

	var data oembedResponse
	err := f.client.GetJSON(ctx, "youtube", f.oembedURL, url.Values{
		"url":    {"https://www.youtube.com/watch?v=" + id},
		"format": {"json"},
	}, &data)
	if err != nil {
		return "", err
	}
	if data.Title == "" {
		return "", nil
	}
	return fmt.Sprintf("YouTube: %s (by %s)", data.Title, data.AuthorName), nil
}

func youtubeVideoID(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if matchesHost(host, "youtu.be") {
		id, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		return id
	}
	if rest, ok := strings.CutPrefix(u.Path, "/shorts/"); ok {
		id, _, _ := strings.Cut(rest, "/")
		return id
	}
	return u.Query().Get("v")
}

func (f *Fetcher) pageTitle(ctx context.Context, raw string) (string, error) {
	var title string
	err := f.client.Fetch(ctx, "web", raw, "text/html,application/xhtml+xml", func(resp *http.Response) error {
		ct := resp.Header.Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "html") {
			return nil
		}
		var err error
		title, err = ExtractTitle(resp.Body, ct)
		return err
	})
	return title, err
}

// Trim collapses whitespace and cuts the title to MaxTitleLength runes
func Trim(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	runes := []rune(title)
	return strings.TrimRight(string(runes[:MaxTitleLength-3]), " ") + "..."
}

// matchesHost reports whether host is one of domains or a subdomain of one
func matchesHost(host string, domains ...string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
