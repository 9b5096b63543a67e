package updates

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"daily-updates-bot/templates"
)

const DefaultFactsURL = "http://numbersapi.com/random/math"

// Facts builds the daily number fact message from numbersapi.com,
// which replies in plain text.
type Facts struct {
	url string
}

func NewFacts(apiURL string) *Facts {
	return &Facts{url: apiURL}
}

func (f *Facts) Produce(ctx context.Context) (string, error) {
	body, err := get(ctx, f.url)
	if err != nil {
		return "", errors.Wrap(err, "unable to get number fact")
	}
	fact := strings.TrimSpace(string(body))
	if len(fact) == 0 {
		return "", errors.New("fact service returned an empty response")
	}
	return fmt.Sprintf(templates.Fact, fact), nil
}
