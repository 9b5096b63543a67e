package telegram

import (
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	tele "gopkg.in/telebot.v3"
)

// Client is a thin typed wrapper around the Telegram Bot API. It only
// performs single calls; polling, dispatching and offset bookkeeping
// are owned by the bot package.
type Client struct {
	bot *tele.Bot
}

var sendOptions = &tele.SendOptions{
	ParseMode:             tele.ModeHTML,
	DisableWebPagePreview: true,
}

// NewClient builds the API client. With verbose set, telebot logs
// every request and response it performs.
func NewClient(token string, verbose bool) (*Client, error) {
	b, err := tele.NewBot(tele.Settings{Token: token, Verbose: verbose})
	if err != nil {
		return nil, errors.Wrap(err, "error during creation of a new bot")
	}
	return &Client{bot: b}, nil
}

// Updates performs one getUpdates call. A negative offset asks the API
// for the newest pending update only. The timeout is the server-side
// long-poll wait.
func (c *Client) Updates(offset, limit int, timeout time.Duration) ([]tele.Update, error) {
	params := map[string]string{
		"offset":  strconv.Itoa(offset),
		"limit":   strconv.Itoa(limit),
		"timeout": strconv.Itoa(int(timeout / time.Second)),
	}
	data, err := c.bot.Raw("getUpdates", params)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Result []tele.Update `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(err, "unable to decode updates response")
	}
	return resp.Result, nil
}

func (c *Client) Send(chatID int64, text string) error {
	_, err := c.bot.Send(tele.ChatID(chatID), text, sendOptions)
	return err
}

// SendMenu sends a message carrying an inline button layout.
func (c *Client) SendMenu(chatID int64, text string, markup *tele.ReplyMarkup) error {
	opts := *sendOptions
	opts.ReplyMarkup = markup
	_, err := c.bot.Send(tele.ChatID(chatID), text, &opts)
	return err
}

func (c *Client) Edit(chatID int64, messageID int, text string) error {
	_, err := c.bot.Edit(stored(chatID, messageID), text, sendOptions)
	return err
}

// EditMenu replaces the button layout of an already sent message. A nil
// markup removes the buttons entirely, which the API distinguishes from
// an empty button list.
func (c *Client) EditMenu(chatID int64, messageID int, markup *tele.ReplyMarkup) error {
	_, err := c.bot.EditReplyMarkup(stored(chatID, messageID), markup)
	return err
}

// AnswerCallback acknowledges a button press. Every callback must be
// answered exactly once or the client UI keeps spinning.
func (c *Client) AnswerCallback(queryID string) error {
	return c.bot.Respond(&tele.Callback{ID: queryID})
}

func (c *Client) ChatInfo(chatID int64) (*tele.Chat, error) {
	chat, err := c.bot.ChatByID(chatID)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to get info for chat %v", chatID)
	}
	return chat, nil
}

func stored(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	}
}

// IsConnectivityError reports whether err is a transient network
// failure that a poll loop should silently retry.
func IsConnectivityError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
