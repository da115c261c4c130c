package web

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"nex/internal/action"
	"nex/internal/nlu"
)

const weatherURL = "http://api.openweathermap.org/data/2.5/weather"

// Weather reports current conditions from OpenWeatherMap in metric units.
type Weather struct {
	Getter
	APIKey  string
	BaseURL string
}

func (w *Weather) Handle(ctx context.Context, req action.Request) (string, error) {
	city := req.Slots.Get(nlu.SlotCity)
	if city == "" {
		return "Which city do you want the weather for?", nil
	}
	if w.APIKey == "" {
		return "Weather API key not configured.", nil
	}

	base := w.BaseURL
	if base == "" {
		base = weatherURL
	}
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", w.APIKey)
	q.Set("units", "metric")

	body, _, err := w.get(ctx, base+"?"+q.Encode())
	if err != nil {
		return fmt.Sprintf("I couldn't reach the weather service: %v", err), nil
	}
	if !gjson.ValidBytes(body) {
		return "I couldn't reach the weather service: malformed response", nil
	}

	data := gjson.ParseBytes(body)
	if data.Get("cod").Int() != 200 {
		return fmt.Sprintf("Sorry, I couldn't find weather for %s.", city), nil
	}

	temp := strconv.FormatFloat(data.Get("main.temp").Float(), 'f', -1, 64)
	desc := data.Get("weather.0.description").String()

	return fmt.Sprintf("The weather in %s is %s with a temperature of %s°C.", city, desc, temp), nil
}
