// Package updates produces the notification payloads sent by the bot.
// Each service wraps one external data API and returns a ready-to-send
// HTML message.
package updates

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const requestTimeout = time.Second * 10

var client = http.Client{Timeout: requestTimeout}

func get(ctx context.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to build request")
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			log.Printf("error when closing the body: %v", err.Error())
		}
	}()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read response body")
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, errors.Errorf("unexpected status %v; body: %v", response.StatusCode, string(body))
	}
	return body, nil
}
