package web

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"nex/internal/action"
	"nex/internal/nlu"
)

const (
	dictionaryURL = "https://api.dictionaryapi.dev/api/v2/entries/en/"
	jokeURL       = "https://v2.jokeapi.dev/joke/Any?blacklistFlags=nsfw,religious,political,racist,sexist,explicit"
)

type Dictionary struct {
	Getter
	BaseURL string
}

func (d *Dictionary) Handle(ctx context.Context, req action.Request) (string, error) {
	word := req.Slots.Get(nlu.SlotWord)
	if word == "" {
		return "Which word should I define?", nil
	}

	base := d.BaseURL
	if base == "" {
		base = dictionaryURL
	}

	body, status, err := d.get(ctx, base+url.PathEscape(word))
	if err != nil || status != http.StatusOK {
		slog.Debug("Dictionary lookup failed", "word", word, "status", status, "err", err)
		return "I couldn't find that definition.", nil
	}

	def := gjson.GetBytes(body, "0.meanings.0.definitions.0.definition").String()
	if def == "" {
		return "I couldn't find that definition.", nil
	}

	return def, nil
}

type Jokes struct {
	Getter
	URL string
}

func (j *Jokes) Handle(ctx context.Context, _ action.Request) (string, error) {
	const failed = "I couldn't get a joke right now."

	u := j.URL
	if u == "" {
		u = jokeURL
	}

	body, status, err := j.get(ctx, u)
	if err != nil || status != http.StatusOK || !gjson.ValidBytes(body) {
		slog.Debug("Joke fetch failed", "status", status, "err", err)
		return failed, nil
	}

	data := gjson.ParseBytes(body)
	if data.Get("error").Bool() {
		return failed, nil
	}

	if data.Get("type").String() == "single" {
		if joke := data.Get("joke").String(); joke != "" {
			return joke, nil
		}
		return failed, nil
	}

	return data.Get("setup").String() + " ... " + data.Get("delivery").String(), nil
}
