package updates

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"daily-updates-bot/templates"
)

const DefaultQuotesURL = "https://zenquotes.io/api/today/"

// Quotes builds the daily quote message from zenquotes.io.
type Quotes struct {
	url string
}

func NewQuotes(apiURL string) *Quotes {
	return &Quotes{url: apiURL}
}

func (q *Quotes) Produce(ctx context.Context) (string, error) {
	body, err := get(ctx, q.url)
	if err != nil {
		return "", errors.Wrap(err, "unable to get quote of the day")
	}
	var quotes []struct {
		Quote  string `json:"q"`
		Author string `json:"a"`
	}
	if err := json.Unmarshal(body, &quotes); err != nil {
		return "", errors.Wrap(err, "unable to decode quote of the day")
	}
	if len(quotes) == 0 {
		return "", errors.New("quote service returned an empty response")
	}
	return fmt.Sprintf(templates.Quote, quotes[0].Quote, quotes[0].Author), nil
}
