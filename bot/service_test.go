package bot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	tele "gopkg.in/telebot.v3"

	"daily-updates-bot/schedule"
	"daily-updates-bot/store"
)

const serviceSettingsFixture = `[
    {
        "id": "wu",
        "name": "Weather Updates",
        "settings": {
            "time": "21:30:00",
            "city": "Pune"
        }
    },
    {
        "id": "dq",
        "name": "Daily Quotes",
        "settings": {
            "time": "06:00:00"
        }
    },
    {
        "id": "nf",
        "name": "Number Facts",
        "settings": {
            "time": "20:55:00"
        }
    }
]`

type fixture struct {
	api        *fakeAPI
	dispatcher *Dispatcher
	service    *Service
	settings   *store.Settings
	sched      *schedule.Scheduler
	path       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "updates.json")
	if err := os.WriteFile(path, []byte(serviceSettingsFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	settings, err := store.OpenSettings(path)
	if err != nil {
		t.Fatal(err)
	}

	api := &fakeAPI{owner: tele.Chat{ID: operatorID, FirstName: "Sid", Username: "operator"}}
	sched := schedule.New(time.UTC)
	dispatcher := NewDispatcher(api)
	service := NewService(api, settings, sched, dispatcher, operatorID)
	service.Register()
	sched.Reload(settings.All())

	return &fixture{
		api:        api,
		dispatcher: dispatcher,
		service:    service,
		settings:   settings,
		sched:      sched,
		path:       path,
	}
}

func (f *fixture) lastSent(t *testing.T) sent {
	t.Helper()
	if len(f.api.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return f.api.sent[len(f.api.sent)-1]
}

func TestOwnerGate(t *testing.T) {
	f := newFixture(t)

	if err := f.dispatcher.Dispatch(commandMessage(666, "/start")); err != nil {
		t.Fatal(err)
	}
	denial := f.lastSent(t)
	if denial.ChatID != 666 || !strings.Contains(denial.Text, "not allowed") {
		t.Errorf("denial = %+v, want an access denial to the stranger", denial)
	}
	if !strings.Contains(denial.Text, "@operator") {
		t.Errorf("denial %q does not name the owner", denial.Text)
	}

	if err := f.dispatcher.Dispatch(commandMessage(operatorID, "/start")); err != nil {
		t.Fatal(err)
	}
	hello := f.lastSent(t)
	if hello.ChatID != operatorID || !strings.Contains(hello.Text, "Hello") {
		t.Errorf("start reply = %+v, want a hello to the owner", hello)
	}
}

func TestHelpListsAllCommands(t *testing.T) {
	f := newFixture(t)

	if err := f.dispatcher.Dispatch(commandMessage(operatorID, "/help")); err != nil {
		t.Fatal(err)
	}
	text := f.lastSent(t).Text
	for _, name := range []string{"/start", "/help", "/credits", "/edit_updates", "/cancel"} {
		if !strings.Contains(text, name) {
			t.Errorf("help does not mention %v", name)
		}
	}
	if strings.Contains(text, promptTimeCommand) {
		t.Error("help leaks the hidden time prompt command")
	}
}

func TestEditUpdatesSendsMainMenu(t *testing.T) {
	f := newFixture(t)

	if err := f.dispatcher.Dispatch(commandMessage(operatorID, "/edit_updates")); err != nil {
		t.Fatal(err)
	}
	if len(f.api.markups) != 1 || f.api.markups[0] == nil {
		t.Fatal("no menu was sent")
	}
	rows := f.api.markups[0].InlineKeyboard
	// Three definitions plus the cancel button, one per row.
	if len(rows) != 4 {
		t.Fatalf("menu has %v rows, want 4", len(rows))
	}
	if got := rows[0][0].Data; got != "main_wu" {
		t.Errorf("first button data = %q, want %q", got, "main_wu")
	}
	if got := rows[3][0].Data; got != "main_cancel" {
		t.Errorf("cancel button data = %q, want %q", got, "main_cancel")
	}
}

// runEditFlow drives the operator through menu selection up to the
// point where the bot waits for the typed time.
func runEditFlow(t *testing.T, f *fixture) {
	t.Helper()
	if err := f.dispatcher.Dispatch(commandMessage(operatorID, "/edit_updates")); err != nil {
		t.Fatal(err)
	}
	if err := f.dispatcher.Dispatch(callbackUpdate(operatorID, "q1", "main_dq")); err != nil {
		t.Fatal(err)
	}
	if err := f.dispatcher.Dispatch(callbackUpdate(operatorID, "q2", "change_ct_dq")); err != nil {
		t.Fatal(err)
	}
}

func TestTimeChangeFlow(t *testing.T) {
	f := newFixture(t)
	runEditFlow(t, f)

	if err := f.dispatcher.Dispatch(textMessage(operatorID, "09:30")); err != nil {
		t.Fatal(err)
	}

	def, err := f.settings.Get("dq")
	if err != nil {
		t.Fatal(err)
	}
	if def.Time() != "09:30:00" {
		t.Errorf("persisted time = %q, want %q", def.Time(), "09:30:00")
	}

	// The schedule groups follow the edit.
	want := map[string][]string{
		"21:30:00": {"wu"},
		"09:30:00": {"dq"},
		"20:55:00": {"nf"},
	}
	if diff := cmp.Diff(want, f.sched.Groups()); diff != "" {
		t.Errorf("unexpected groups after edit (-want +got):\n%s", diff)
	}

	success := f.lastSent(t)
	if !strings.Contains(success.Text, "Successfully changed the time") {
		t.Errorf("success notice = %q", success.Text)
	}

	// The edit is durable.
	reopened, err := store.OpenSettings(f.path)
	if err != nil {
		t.Fatal(err)
	}
	def, err = reopened.Get("dq")
	if err != nil {
		t.Fatal(err)
	}
	if def.Time() != "09:30:00" {
		t.Errorf("time after reopen = %q, want %q", def.Time(), "09:30:00")
	}
}

func TestTimeValidationRejects(t *testing.T) {
	for _, input := range []string{"9:30", "ab:cd", "0930", "09-30", "09:3"} {
		t.Run(input, func(t *testing.T) {
			f := newFixture(t)
			runEditFlow(t, f)

			if err := f.dispatcher.Dispatch(textMessage(operatorID, input)); err != nil {
				t.Fatal(err)
			}
			retry := f.lastSent(t)
			if !strings.Contains(retry.Text, "Can't change the time") {
				t.Errorf("reply = %q, want a retry prompt", retry.Text)
			}
			def, err := f.settings.Get("dq")
			if err != nil {
				t.Fatal(err)
			}
			if def.Time() != "06:00:00" {
				t.Errorf("time changed to %q on invalid input", def.Time())
			}

			// The state survives for a retry.
			if err := f.dispatcher.Dispatch(textMessage(operatorID, "09:30")); err != nil {
				t.Fatal(err)
			}
			def, err = f.settings.Get("dq")
			if err != nil {
				t.Fatal(err)
			}
			if def.Time() != "09:30:00" {
				t.Errorf("retry did not persist, time = %q", def.Time())
			}
		})
	}
}

func TestCancelReportsPendingOperation(t *testing.T) {
	f := newFixture(t)
	runEditFlow(t, f)

	if err := f.dispatcher.Dispatch(commandMessage(operatorID, "/cancel")); err != nil {
		t.Fatal(err)
	}
	cancelled := f.lastSent(t)
	if !strings.Contains(cancelled.Text, "Successfully cancelled") {
		t.Errorf("cancel reply = %q", cancelled.Text)
	}

	// The follow-up expectation is gone: typed text changes nothing.
	if err := f.dispatcher.Dispatch(textMessage(operatorID, "09:30")); err != nil {
		t.Fatal(err)
	}
	def, err := f.settings.Get("dq")
	if err != nil {
		t.Fatal(err)
	}
	if def.Time() != "06:00:00" {
		t.Errorf("time = %q after cancelled edit, want unchanged", def.Time())
	}
}

func TestCancelWithNothingPending(t *testing.T) {
	f := newFixture(t)

	if err := f.dispatcher.Dispatch(commandMessage(operatorID, "/cancel")); err != nil {
		t.Fatal(err)
	}
	reply := f.lastSent(t)
	if !strings.Contains(reply.Text, "No ongoing operation") {
		t.Errorf("reply = %q, want a nothing-to-cancel notice", reply.Text)
	}
}

func TestMenuCancelClearsLayout(t *testing.T) {
	f := newFixture(t)
	runEditFlow(t, f)
	f.api.markups = nil

	if err := f.dispatcher.Dispatch(callbackUpdate(operatorID, "q9", "change_cancel")); err != nil {
		t.Fatal(err)
	}
	if len(f.api.markups) != 1 || f.api.markups[0] != nil {
		t.Errorf("markups = %v, want a single nil markup clearing the buttons", f.api.markups)
	}

	// And the armed follow-up was abandoned.
	if err := f.dispatcher.Dispatch(textMessage(operatorID, "09:30")); err != nil {
		t.Fatal(err)
	}
	def, err := f.settings.Get("dq")
	if err != nil {
		t.Fatal(err)
	}
	if def.Time() != "06:00:00" {
		t.Errorf("time = %q after cancelled menu, want unchanged", def.Time())
	}
}

func TestMenuBackReturnsToMainMenu(t *testing.T) {
	f := newFixture(t)
	if err := f.dispatcher.Dispatch(commandMessage(operatorID, "/edit_updates")); err != nil {
		t.Fatal(err)
	}
	if err := f.dispatcher.Dispatch(callbackUpdate(operatorID, "q1", "main_dq")); err != nil {
		t.Fatal(err)
	}
	f.api.markups = nil

	if err := f.dispatcher.Dispatch(callbackUpdate(operatorID, "q2", "change_back")); err != nil {
		t.Fatal(err)
	}
	if len(f.api.markups) != 1 || f.api.markups[0] == nil {
		t.Fatal("back did not restore a menu")
	}
	if got := f.api.markups[0].InlineKeyboard[0][0].Data; got != "main_wu" {
		t.Errorf("restored menu starts with %q, want %q", got, "main_wu")
	}
}
