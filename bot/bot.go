package bot

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	tele "gopkg.in/telebot.v3"

	"daily-updates-bot/schedule"
	"daily-updates-bot/store"
	"daily-updates-bot/telegram"
	"daily-updates-bot/updates"
)

type Config struct {
	Token         string
	OwnerID       int64
	WeatherAPIKey string
	Timezone      string
	SettingsPath  string
	CursorPath    string
	// StatusAddr enables the HTTP status endpoints when set.
	StatusAddr string
	// Debug turns on verbose logging of every Bot API call.
	Debug bool
}

const (
	defaultTimezone     = "Asia/Kolkata"
	defaultSettingsPath = "updates.json"
	defaultCursorPath   = "update_id.txt"
)

// ConfigFromEnv builds the configuration from environment variables.
func ConfigFromEnv() (Config, error) {
	c := Config{
		Token:         os.Getenv("BOT_TOKEN"),
		WeatherAPIKey: os.Getenv("WEATHER_API_KEY"),
		Timezone:      os.Getenv("TIMEZONE"),
		SettingsPath:  os.Getenv("SETTINGS_FILE"),
		CursorPath:    os.Getenv("CURSOR_FILE"),
		StatusAddr:    os.Getenv("STATUS_ADDR"),
	}
	if c.Token == "" {
		return Config{}, errors.New("BOT_TOKEN is not set")
	}
	owner, err := strconv.ParseInt(os.Getenv("OWNER_TELEGRAM_ID"), 10, 64)
	if err != nil {
		return Config{}, errors.Wrap(err, "OWNER_TELEGRAM_ID is not a valid id")
	}
	c.OwnerID = owner
	c.Debug, _ = strconv.ParseBool(os.Getenv("DEBUG"))
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.SettingsPath == "" {
		c.SettingsPath = defaultSettingsPath
	}
	if c.CursorPath == "" {
		c.CursorPath = defaultCursorPath
	}
	return c, nil
}

// Start wires everything together and polls until ctx is cancelled.
// The confirm channel is signalled once shutdown has completed.
func Start(ctx context.Context, config Config, confirm chan<- struct{}) error {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return errors.Wrapf(err, "unknown timezone %v", config.Timezone)
	}
	settings, err := store.OpenSettings(config.SettingsPath)
	if err != nil {
		return err
	}
	cursor, err := store.OpenCursor(config.CursorPath)
	if err != nil {
		return err
	}
	client, err := telegram.NewClient(config.Token, config.Debug)
	if err != nil {
		return err
	}

	sched := schedule.New(loc)
	dispatcher := NewDispatcher(client)
	service := NewService(client, settings, sched, dispatcher, config.OwnerID)
	service.Register()

	dispatcher.Events = Events{
		OnStart: func() { log.Println("[*] Bot Started!") },
		OnStop:  func() { log.Println("[*] Bot Stopped!") },
		OnCommand: func(command string, msg *tele.Message) {
			username := msg.Sender.Username
			if username == "" {
				username = "(no username)"
			}
			log.Printf("[*] New command: %v -> %v -> @%v", command, msg.Sender.ID, username)
		},
	}

	weather := updates.NewWeather(updates.DefaultWeatherURL, config.WeatherAPIKey, loc, settings.City)
	quotes := updates.NewQuotes(updates.DefaultQuotesURL)
	facts := updates.NewFacts(updates.DefaultFactsURL)
	sched.Set(store.WeatherID, service.Deliver("weather", weather))
	sched.Set(store.QuotesID, service.Deliver("quotes", quotes))
	sched.Set(store.FactsID, service.Deliver("facts", facts))
	sched.Reload(settings.All())

	if config.StatusAddr != "" {
		router := mux.NewRouter()
		NewStatus(cursor, sched).Register(router)
		go func() {
			if err := http.ListenAndServe(config.StatusAddr, router); err != nil {
				log.Printf("status server error: %v", err.Error())
			}
		}()
		log.Printf("Started status server on %v", config.StatusAddr)
	}

	poller := NewPoller(client, cursor, dispatcher)
	if err := poller.SkipBacklog(); err != nil {
		log.Printf("unable to skip pending backlog: %v", err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	// Blocks until stop.
	poller.Run(ctx)
	wg.Wait()
	confirm <- struct{}{}
	return nil
}
