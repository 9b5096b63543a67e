package bot

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"daily-updates-bot/telegram"
)

// API is the outbound surface of the Telegram client consumed by the
// dispatcher and the handlers.
type API interface {
	Updates(offset, limit int, timeout time.Duration) ([]tele.Update, error)
	Send(chatID int64, text string) error
	SendMenu(chatID int64, text string, markup *tele.ReplyMarkup) error
	Edit(chatID int64, messageID int, text string) error
	EditMenu(chatID int64, messageID int, markup *tele.ReplyMarkup) error
	AnswerCallback(queryID string) error
	ChatInfo(chatID int64) (*tele.Chat, error)
}

type HandlerFunc func(msg *tele.Message) error

// FollowupFunc consumes the free-text message a command asked for.
// Returning done clears the pending expectation; returning !done keeps
// it so the operator can retry.
type FollowupFunc func(msg *tele.Message) (done bool, err error)

// GateFunc runs before every command handler. A false result means the
// sender was denied and the handler must not run; the gate itself is
// expected to have told the sender.
type GateFunc func(msg *tele.Message) (bool, error)

// Events are optional lifecycle hooks.
type Events struct {
	OnStart   func()
	OnStop    func()
	OnMessage func(msg *tele.Message)
	OnCommand func(command string, msg *tele.Message)
}

type command struct {
	handler  HandlerFunc
	followup FollowupFunc
}

// Dispatcher routes polled updates to command handlers and menu
// actions, and holds the per-chat conversation state: idle, or
// awaiting the follow-up text of one command. It is driven entirely by
// the polling loop goroutine.
type Dispatcher struct {
	api    API
	Events Events

	gate      GateFunc
	commands  map[string]command
	menus     map[string]*telegram.Menu
	awaiting  map[int64]string
	previous  map[int64]string
	displaced map[int64]string
}

func NewDispatcher(api API) *Dispatcher {
	return &Dispatcher{
		api:       api,
		commands:  make(map[string]command),
		menus:     make(map[string]*telegram.Menu),
		awaiting:  make(map[int64]string),
		previous:  make(map[int64]string),
		displaced: make(map[int64]string),
	}
}

// Handle registers the handler for /name.
func (d *Dispatcher) Handle(name string, h HandlerFunc) {
	d.commands[name] = command{handler: h}
}

// HandleFollowup registers a command that keeps listening for one more
// free-text message after it ran.
func (d *Dispatcher) HandleFollowup(name string, h HandlerFunc, f FollowupFunc) {
	d.commands[name] = command{handler: h, followup: f}
}

// Gate sets the wildcard handler invoked before every command.
func (d *Dispatcher) Gate(g GateFunc) {
	d.gate = g
}

// Register adds a menu to the callback routing table. Menus are
// registered once at startup and live for the process lifetime.
func (d *Dispatcher) Register(m *telegram.Menu) {
	d.menus[m.Name()] = m
}

// Await arms the follow-up expectation of the given command for a
// chat, replacing whatever was pending. Used by menu actions that need
// a typed reply.
func (d *Dispatcher) Await(chatID int64, name string) {
	d.awaiting[chatID] = name
}

// ClearAwait drops a pending follow-up expectation and reports whether
// one was actually pending.
func (d *Dispatcher) ClearAwait(chatID int64) bool {
	_, pending := d.awaiting[chatID]
	delete(d.awaiting, chatID)
	return pending
}

// Previous returns the last command this chat ran.
func (d *Dispatcher) Previous(chatID int64) string {
	return d.previous[chatID]
}

// Displaced reports the follow-up expectation, if any, that the
// command currently being handled cleared on arrival.
func (d *Dispatcher) Displaced(chatID int64) (string, bool) {
	name, ok := d.displaced[chatID]
	return name, ok
}

// Dispatch classifies one update and advances the conversation state
// machine. Updates that are neither a message nor a callback are
// dropped.
func (d *Dispatcher) Dispatch(u tele.Update) error {
	switch {
	case u.Message != nil:
		return d.dispatchMessage(u.Message)
	case u.Callback != nil:
		return d.dispatchCallback(u.Callback)
	}
	return nil
}

func (d *Dispatcher) dispatchMessage(msg *tele.Message) error {
	if msg.Sender == nil {
		return nil
	}
	if d.Events.OnMessage != nil {
		d.Events.OnMessage(msg)
	}
	chatID := msg.Sender.ID
	name, ok := commandName(msg)
	if !ok {
		return d.dispatchFollowup(chatID, msg)
	}
	cmd, ok := d.commands[name]
	if !ok {
		// Not a command of ours.
		return nil
	}
	if d.Events.OnCommand != nil {
		d.Events.OnCommand(name, msg)
	}
	if d.gate != nil {
		allowed, err := d.gate(msg)
		if err != nil {
			return err
		}
		if !allowed {
			return nil
		}
	}
	// Arm or clear the follow-up expectation before the handler runs:
	// a stale expectation must not leak onto an unrelated command, but
	// a handler arming a follow-up through Await has the last word.
	if cmd.followup != nil {
		d.awaiting[chatID] = name
	} else if pending, ok := d.awaiting[chatID]; ok {
		d.displaced[chatID] = pending
		delete(d.awaiting, chatID)
	} else {
		delete(d.displaced, chatID)
	}
	err := cmd.handler(msg)
	d.previous[chatID] = name
	return err
}

func (d *Dispatcher) dispatchFollowup(chatID int64, msg *tele.Message) error {
	name, pending := d.awaiting[chatID]
	if !pending {
		// Plain text with nothing pending is dropped.
		return nil
	}
	cmd, ok := d.commands[name]
	if !ok || cmd.followup == nil {
		delete(d.awaiting, chatID)
		return nil
	}
	done, err := cmd.followup(msg)
	if done {
		delete(d.awaiting, chatID)
	}
	return err
}

func (d *Dispatcher) dispatchCallback(cb *tele.Callback) error {
	if cb.Message == nil || cb.Message.Chat == nil {
		return d.api.AnswerCallback(cb.ID)
	}
	name, payload, _ := strings.Cut(cb.Data, "_")
	menu, ok := d.menus[name]
	if !ok || menu.Action() == nil {
		// Nobody else is going to answer this press.
		return d.api.AnswerCallback(cb.ID)
	}
	return menu.Action()(telegram.Query{
		Payload:   payload,
		ChatID:    cb.Message.Chat.ID,
		MessageID: cb.Message.ID,
		ID:        cb.ID,
	})
}

func commandName(msg *tele.Message) (string, bool) {
	for _, entity := range msg.Entities {
		if entity.Type != tele.EntityCommand || entity.Offset != 0 {
			continue
		}
		name := msg.Text[1:entity.Length]
		if at := strings.IndexByte(name, '@'); at >= 0 {
			name = name[:at]
		}
		return name, true
	}
	return "", false
}
