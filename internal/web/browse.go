package web

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/browser"

	"nex/internal/action"
	"nex/internal/nlu"
)

// Opener shows a URL to the user.
type Opener func(url string) error

// Browser serves search, open_site and play_music by opening pages in the
// desktop browser.
type Browser struct {
	open Opener
}

// NewBrowser uses the system browser when open is nil.
func NewBrowser(open Opener) *Browser {
	if open == nil {
		open = browser.OpenURL
	}
	return &Browser{open: open}
}

func (b *Browser) Search(_ context.Context, req action.Request) (string, error) {
	query := req.Slots.Get(nlu.SlotQuery)
	if query == "" {
		return "What should I search for?", nil
	}

	if err := b.open("https://www.google.com/search?q=" + url.QueryEscape(query)); err != nil {
		return "", err
	}
	return "Searching for " + query, nil
}

func (b *Browser) OpenSite(_ context.Context, req action.Request) (string, error) {
	target := req.Slots.Get(nlu.SlotTarget)
	if target == "" {
		return "Which site should I open?", nil
	}

	if err := b.open(SiteURL(target)); err != nil {
		return "", err
	}
	return "Opening " + target, nil
}

func (b *Browser) PlayMusic(_ context.Context, req action.Request) (string, error) {
	song := req.Slots.Get(nlu.SlotSong)
	if song == "" {
		return "What should I play?", nil
	}

	if err := b.open("https://www.youtube.com/results?search_query=" + url.QueryEscape(song)); err != nil {
		return "", err
	}
	return "Playing " + song, nil
}

// SiteURL turns a spoken site name into a URL.
func SiteURL(target string) string {
	switch {
	case strings.Contains(target, ".") || strings.Contains(target, "http"):
		if strings.HasPrefix(target, "http") {
			return target
		}
		return "https://" + target
	case strings.Contains(target, "gmail"):
		return "https://mail.google.com"
	case strings.Contains(target, "youtube"):
		return "https://www.youtube.com"
	}
	return "https://" + target + ".com"
}
