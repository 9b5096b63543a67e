package bot

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/pkg/errors"
	tele "gopkg.in/telebot.v3"

	"daily-updates-bot/schedule"
	"daily-updates-bot/store"
	"daily-updates-bot/telegram"
	"daily-updates-bot/templates"
)

// Pseudo-command registered only for its follow-up handler; menu
// actions arm it to receive the typed time.
const promptTimeCommand = "_prompt_time"

const (
	mainMenuName   = "main"
	changeMenuName = "change"

	cancelToken     = "cancel"
	backToken       = "back"
	changeTimeToken = "ct"
)

var commandList = []struct {
	name        string
	description string
}{
	{"start", "Just sends a start message"},
	{"help", "Shows this help message"},
	{"credits", "Shows the credits and the services used by this bot"},
	{"edit_updates", "Edit the settings of the updates you receive"},
	{"cancel", "Cancel the current operation"},
}

// Service implements the command surface and the interactive settings
// edit flow.
type Service struct {
	api        API
	settings   *store.Settings
	sched      *schedule.Scheduler
	dispatcher *Dispatcher
	owner      int64

	mainMenu *telegram.Menu
	// editing records, per operator chat, which update definition the
	// settings menu is currently drilling into.
	editing map[int64]string
}

func NewService(
	api API,
	settings *store.Settings,
	sched *schedule.Scheduler,
	dispatcher *Dispatcher,
	owner int64,
) *Service {
	return &Service{
		api:        api,
		settings:   settings,
		sched:      sched,
		dispatcher: dispatcher,
		owner:      owner,
		editing:    make(map[int64]string),
	}
}

// Register wires all commands, the owner gate and the menus into the
// dispatcher.
func (s *Service) Register() {
	s.dispatcher.Gate(s.checkOwner)
	s.dispatcher.Handle("start", s.Start)
	s.dispatcher.Handle("help", s.Help)
	s.dispatcher.Handle("credits", s.Credits)
	s.dispatcher.Handle("edit_updates", s.EditUpdates)
	s.dispatcher.Handle("cancel", s.Cancel)
	s.dispatcher.HandleFollowup(promptTimeCommand, func(*tele.Message) error { return nil }, s.askTime)

	s.mainMenu = telegram.NewMenu(mainMenuName)
	for _, def := range s.settings.All() {
		s.mainMenu.Add(def.Name, def.ID)
	}
	s.mainMenu.Add("< Cancel >", cancelToken)
	s.mainMenu.Handle(s.changeSettings)
	s.dispatcher.Register(s.mainMenu)

	changeMenu := telegram.NewMenu(changeMenuName)
	changeMenu.Handle(s.changeTime)
	s.dispatcher.Register(changeMenu)
}

// checkOwner is the wildcard gate: the bot talks to its owner only.
func (s *Service) checkOwner(msg *tele.Message) (bool, error) {
	if msg.Sender.ID == s.owner {
		return true, nil
	}
	ownerName := s.ownerName()
	err := s.api.Send(msg.Sender.ID, fmt.Sprintf(templates.AccessDenied, ownerName))
	return false, err
}

func (s *Service) ownerName() string {
	owner, err := s.api.ChatInfo(s.owner)
	if err != nil {
		log.Printf("unable to get owner info: %v", err.Error())
		return "the owner"
	}
	if owner.Username != "" {
		return "@" + owner.Username
	}
	return fmt.Sprintf("%v (username doesn't exist)", owner.FirstName)
}

func (s *Service) Start(msg *tele.Message) error {
	return s.api.Send(msg.Sender.ID, fmt.Sprintf(templates.Start, msg.Sender.FirstName))
}

func (s *Service) Help(msg *tele.Message) error {
	var lines []string
	for i, cmd := range commandList {
		lines = append(lines, fmt.Sprintf(templates.HelpLine, i+1, cmd.name, cmd.description))
	}
	return s.api.Send(msg.Sender.ID, fmt.Sprintf(templates.Help, strings.Join(lines, "")))
}

func (s *Service) Credits(msg *tele.Message) error {
	return s.api.Send(msg.Sender.ID, templates.Credits)
}

func (s *Service) EditUpdates(msg *tele.Message) error {
	return s.api.SendMenu(msg.Sender.ID, templates.EditIntro, s.mainMenu.Markup())
}

func (s *Service) Cancel(msg *tele.Message) error {
	chatID := msg.Sender.ID
	delete(s.editing, chatID)
	if _, ok := s.dispatcher.Displaced(chatID); ok {
		previous := s.dispatcher.Previous(chatID)
		return s.api.Send(chatID, fmt.Sprintf(templates.CancelledCommand, previous))
	}
	return s.api.Send(chatID, templates.NothingToCancel)
}

// changeSettings is the action of the main menu: drill down into the
// settings of the selected update definition.
func (s *Service) changeSettings(q telegram.Query) error {
	if err := s.api.AnswerCallback(q.ID); err != nil {
		return err
	}
	if q.Payload == cancelToken {
		return s.cancelMenus(q)
	}
	def, err := s.settings.Get(q.Payload)
	if err != nil {
		return errors.Wrapf(err, "unknown update %v selected", q.Payload)
	}

	var lines []string
	for _, key := range sortedKeys(def.Settings) {
		lines = append(lines, fmt.Sprintf(templates.SettingLine, titleKey(key), def.Settings[key]))
	}
	text := fmt.Sprintf(templates.SettingsMenu, def.Name, strings.Join(lines, ""))

	submenu := telegram.NewMenu(changeMenuName)
	submenu.Add("Change Time", changeTimeToken+"_"+def.ID)
	submenu.Add("< Go Back >", backToken)
	submenu.Add("< Cancel >", cancelToken)

	if err := s.api.Edit(q.ChatID, q.MessageID, text); err != nil {
		return err
	}
	return s.api.EditMenu(q.ChatID, q.MessageID, submenu.Markup())
}

// changeTime is the action of the per-item submenu.
func (s *Service) changeTime(q telegram.Query) error {
	if err := s.api.AnswerCallback(q.ID); err != nil {
		return err
	}
	switch q.Payload {
	case cancelToken:
		delete(s.editing, q.ChatID)
		s.dispatcher.ClearAwait(q.ChatID)
		return s.cancelMenus(q)
	case backToken:
		if err := s.api.Edit(q.ChatID, q.MessageID, templates.EditIntro); err != nil {
			return err
		}
		return s.api.EditMenu(q.ChatID, q.MessageID, s.mainMenu.Markup())
	}

	action, id, ok := strings.Cut(q.Payload, "_")
	if !ok || action != changeTimeToken {
		// Unknown button; already acknowledged.
		return nil
	}
	def, err := s.settings.Get(id)
	if err != nil {
		return errors.Wrapf(err, "unknown update %v selected for time change", id)
	}
	s.editing[q.ChatID] = id

	if err := s.api.Edit(q.ChatID, q.MessageID, fmt.Sprintf(templates.ChosenUpdate, def.Name)); err != nil {
		return err
	}
	if err := s.api.EditMenu(q.ChatID, q.MessageID, nil); err != nil {
		return err
	}
	if err := s.api.Send(q.ChatID, fmt.Sprintf(templates.AskTime, def.Name)); err != nil {
		return err
	}
	s.dispatcher.Await(q.ChatID, promptTimeCommand)
	return nil
}

// askTime consumes the typed time. Invalid input re-prompts and keeps
// the follow-up expectation so the operator can retry indefinitely.
func (s *Service) askTime(msg *tele.Message) (bool, error) {
	chatID := msg.Sender.ID
	id, ok := s.editing[chatID]
	if !ok {
		return true, errors.New("time input received while nothing is being edited")
	}
	text := strings.TrimSpace(msg.Text)
	if !validTime(text) {
		return false, s.api.Send(chatID, templates.BadTime)
	}
	if err := s.settings.SetTime(id, text+":00"); err != nil {
		return false, err
	}
	s.sched.Reload(s.settings.All())
	def, err := s.settings.Get(id)
	if err != nil {
		return true, err
	}
	delete(s.editing, chatID)
	return true, s.api.Send(chatID, fmt.Sprintf(templates.TimeChanged, def.Name, text))
}

func (s *Service) cancelMenus(q telegram.Query) error {
	if err := s.api.Edit(q.ChatID, q.MessageID, templates.Cancelled); err != nil {
		return err
	}
	return s.api.EditMenu(q.ChatID, q.MessageID, nil)
}

// validTime accepts exactly HH:MM with numeric components.
// TODO: reject out-of-range hours and minutes.
func validTime(text string) bool {
	if len(text) != 5 || text[2] != ':' {
		return false
	}
	return isDigits(text[:2]) && isDigits(text[3:])
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func titleKey(key string) string {
	if len(key) == 0 {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

// Producer is the contract of a notification content collaborator.
type Producer interface {
	Produce(ctx context.Context) (string, error)
}

// Deliver builds the scheduled task that produces one update payload
// and sends it to the owner. Collaborator failures are logged and the
// task simply produces no output.
func (s *Service) Deliver(name string, producer Producer) schedule.Task {
	return func(ctx context.Context) {
		payload, err := producer.Produce(ctx)
		if err != nil {
			log.Printf("unable to produce %v update: %v", name, err.Error())
			return
		}
		if err := s.api.Send(s.owner, payload); err != nil {
			log.Printf("unable to send %v update: %v", name, err.Error())
		}
	}
}
