package updates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"

	"daily-updates-bot/templates"
)

const (
	DefaultWeatherURL = "https://api.weatherapi.com/v1"

	forecastDays  = 3
	dateLayout    = "2006-01-02"
	checkedLayout = "02/01/2006 15:04"
)

// Weather builds the daily rain forecast message for tomorrow from
// weatherapi.com.
type Weather struct {
	url  string
	key  string
	loc  *time.Location
	city func() string
}

// NewWeather creates the weather service. The city is looked up on
// every call so settings edits take effect without a restart.
func NewWeather(apiURL, key string, loc *time.Location, city func() string) *Weather {
	return &Weather{url: apiURL, key: key, loc: loc, city: city}
}

type forecastResponse struct {
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				DailyWillItRain   int `json:"daily_will_it_rain"`
				DailyChanceOfRain int `json:"daily_chance_of_rain"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (w *Weather) Produce(ctx context.Context) (string, error) {
	city := w.city()
	now := time.Now().In(w.loc)
	tomorrow := now.AddDate(0, 0, 1).Format(dateLayout)

	values := url.Values{}
	values.Set("q", city)
	values.Set("days", fmt.Sprint(forecastDays))
	values.Set("key", w.key)
	body, err := get(ctx, fmt.Sprintf("%v/forecast.json?%v", w.url, values.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "unable to get weather forecast")
	}

	var forecast forecastResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		return "", errors.Wrap(err, "unable to decode weather forecast")
	}
	for _, day := range forecast.Forecast.ForecastDay {
		if day.Date != tomorrow {
			continue
		}
		rain := "will not rain"
		if day.Day.DailyWillItRain == 1 {
			rain = "will rain"
		}
		return fmt.Sprintf(
			templates.Weather,
			titleCase(city),
			rain,
			day.Day.DailyChanceOfRain,
			now.Format(checkedLayout),
		), nil
	}
	return "", errors.Errorf("no forecast data found for the date %v", tomorrow)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
