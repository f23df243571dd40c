package ical

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"calplanner/src-server/apperr"
)

// Feeds larger than this are cut; no real timetable comes close.
const maxFeedSize = 32 << 20

type FetchResult struct {
	Url  string
	Body []byte
	// hex sha256 of Body
	Hash string
}

// GET a feed. Anything but a 2xx answer is ErrFeedUnavailable.
func FetchFeed(ctx context.Context, client *http.Client, url_ string) (*FetchResult, error) {
	validUrl, err := url.ParseRequestURI(url_)
	if err != nil || (validUrl.Scheme != "http" && validUrl.Scheme != "https") {
		return nil, apperr.MalformedInput("invalid feed url", map[string]any{
			"url": RedactURL(url_),
			"err": err,
		})
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, validUrl.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("FetchFeed: can't create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.8")
	req.Header.Set("User-Agent", "calplanner")

	slog.Debug("fetching feed", "url", RedactURL(url_))
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.FeedUnavailable("can't make HTTP request", map[string]any{
			"url": RedactURL(url_),
			"err": err,
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.FeedUnavailable("unexpected status", map[string]any{
			"url":    RedactURL(url_),
			"status": resp.Status,
		})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, apperr.FeedUnavailable("can't read response body", map[string]any{
			"url": RedactURL(url_),
			"err": err,
		})
	}

	return &FetchResult{
		Url:  url_,
		Body: body,
		Hash: fmt.Sprintf("%x", sha256.Sum256(body)),
	}, nil
}

// Keep scheme and host only; feed URLs often carry private tokens.
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"
	_, rest, found := strings.Cut(u, "://")
	if !found {
		return "...(redacted)"
	}
	scheme := u[:len(u)-len(rest)]
	host, _, _ := strings.Cut(rest, "/")
	return scheme + host + redactedSuffix
}
