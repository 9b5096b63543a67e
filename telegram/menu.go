package telegram

import (
	tele "gopkg.in/telebot.v3"
)

// Query is one decoded button press, routed to the menu that produced
// the button.
type Query struct {
	// Payload is the button token with the menu name prefix stripped.
	Payload string
	// ChatID is the chat the pressed button lives in.
	ChatID int64
	// MessageID is the message bearing the buttons.
	MessageID int
	// ID identifies the callback query itself and is needed to
	// acknowledge it.
	ID string
}

// ActionFunc handles a button press of a menu. The handler is
// responsible for acknowledging the query before editing anything.
type ActionFunc func(q Query) error

// Menu is a named inline keyboard. Button callback data is namespaced
// with the menu name ("<name>_<token>") so an inbound press can be
// attributed to its menu even with several menus in flight.
type Menu struct {
	name   string
	rows   [][]tele.InlineButton
	action ActionFunc
}

func NewMenu(name string) *Menu {
	return &Menu{name: name}
}

func (m *Menu) Name() string { return m.name }

// Add appends a button row with the given label and token.
func (m *Menu) Add(label, token string) {
	m.rows = append(m.rows, []tele.InlineButton{{
		Text: label,
		Data: m.name + "_" + token,
	}})
}

// Handle sets the action invoked when any button of this menu is
// pressed.
func (m *Menu) Handle(fn ActionFunc) {
	m.action = fn
}

func (m *Menu) Action() ActionFunc { return m.action }

// Markup renders the menu for sending. An empty menu renders as no
// markup at all, which clears buttons when used with EditMenu.
func (m *Menu) Markup() *tele.ReplyMarkup {
	if len(m.rows) == 0 {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: m.rows}
}
