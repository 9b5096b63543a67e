package bot

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	tele "gopkg.in/telebot.v3"

	"daily-updates-bot/store"
	"daily-updates-bot/telegram"
)

const (
	// Server-side long-poll wait; bounds shutdown latency too.
	pollTimeout = time.Second * 3
	pollLimit   = 10
	// Backoff for non-connectivity fetch errors (a revoked token, a
	// malformed response) so the loop does not spin.
	pollRetryDelay = time.Second
)

// Poller is the long-poll loop. It fetches updates from the durable
// cursor onwards, hands exactly the first update of every batch to the
// dispatcher and then advances the cursor, one update per iteration.
type Poller struct {
	api        API
	cursor     *store.Cursor
	dispatcher *Dispatcher
}

func NewPoller(api API, cursor *store.Cursor, dispatcher *Dispatcher) *Poller {
	return &Poller{api: api, cursor: cursor, dispatcher: dispatcher}
}

// SkipBacklog jumps the cursor past updates that queued up while the
// bot was not running, so a restart does not replay them.
func (p *Poller) SkipBacklog() error {
	// A negative offset asks for the newest pending update only.
	pending, err := p.api.Updates(-1, 1, 0)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	return p.cursor.Advance(pending[len(pending)-1].ID)
}

// Run polls until ctx is cancelled. Transient connectivity errors are
// retried silently. When dispatching an update fails the update is
// skipped, not retried: the cursor advances regardless of the handler
// outcome so one malformed update can never wedge the loop.
func (p *Poller) Run(ctx context.Context) {
	if p.dispatcher.Events.OnStart != nil {
		p.dispatcher.Events.OnStart()
	}
	for {
		select {
		case <-ctx.Done():
			if p.dispatcher.Events.OnStop != nil {
				p.dispatcher.Events.OnStop()
			}
			return
		default:
		}

		batch, err := p.api.Updates(p.cursor.Next(), pollLimit, pollTimeout)
		if err != nil {
			if telegram.IsConnectivityError(err) {
				continue
			}
			log.Printf("polling loop error: %v", err.Error())
			time.Sleep(pollRetryDelay)
			continue
		}
		if len(batch) == 0 {
			continue
		}

		// Updates arrive oldest first; consuming only the head keeps
		// the cursor moving one step at a time.
		update := batch[0]
		if err := p.dispatch(update); err != nil {
			log.Printf("error while handling update %v: %v", update.ID, err.Error())
		}
		if err := p.cursor.Advance(update.ID); err != nil {
			log.Printf("unable to advance cursor: %v", err.Error())
		}
	}
}

// dispatch converts a handler panic into an error so the cursor still
// advances past the update that triggered it. Otherwise a restart
// would resume on the same update and crash again.
func (p *Poller) dispatch(update tele.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic while handling update: %v", r)
		}
	}()
	return p.dispatcher.Dispatch(update)
}
