package reminders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/smith3v/taskmood-bot/pkg/db"
	"github.com/smith3v/taskmood-bot/pkg/internal/testutil"
	"github.com/smith3v/taskmood-bot/pkg/notify"
	"gorm.io/gorm"
)

type sentMessage struct {
	userID int64
	text   string
	// budget is the time left on the send context, zero without a deadline.
	budget time.Duration
}

type scriptedResult struct {
	outcome notify.Outcome
	err     error
	panics  bool
}

// fakeNotifier plays back scripted results in order and then delivers
// everything.
type fakeNotifier struct {
	mu       sync.Mutex
	script   []scriptedResult
	messages []sentMessage
}

func (f *fakeNotifier) Send(ctx context.Context, userID int64, text string) (notify.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := sentMessage{userID: userID, text: text}
	if deadline, ok := ctx.Deadline(); ok {
		msg.budget = time.Until(deadline)
	}
	f.messages = append(f.messages, msg)
	if len(f.script) == 0 {
		return notify.Delivered, nil
	}
	next := f.script[0]
	f.script = f.script[1:]
	if next.panics {
		panic("notifier exploded")
	}
	return next.outcome, next.err
}

func (f *fakeNotifier) pushPanic() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, scriptedResult{panics: true})
}

func (f *fakeNotifier) push(outcome notify.Outcome, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, scriptedResult{outcome: outcome, err: err})
}

func (f *fakeNotifier) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.messages...)
}

type testEnv struct {
	scheduler *Scheduler
	db        *gorm.DB
	clock     clock.FakeClock
	notifier  *fakeNotifier
	settings  *db.SettingsStore
	reminders *db.ReminderRepository
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	gdb := testutil.SetupTestDB(t)
	clk := clock.NewFake()
	notifier := &fakeNotifier{}
	settings := db.NewSettingsStore(gdb)
	repo := db.NewReminderRepository(gdb)
	s := New(Deps{
		Tasks:     db.NewTaskStore(gdb),
		Settings:  settings,
		Reminders: repo,
		Notifier:  notifier,
		Clock:     clk,
	}, cfg)
	return &testEnv{scheduler: s, db: gdb, clock: clk, notifier: notifier, settings: settings, reminders: repo}
}

func (e *testEnv) createTask(t *testing.T, userID int64, content string, dueAt time.Time, priority string) db.Task {
	t.Helper()
	task, err := db.CreateTask(context.Background(), e.db, userID, content, &dueAt, priority)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	return task
}

func (e *testEnv) saveSettings(t *testing.T, settings db.ReminderSettings) {
	t.Helper()
	if err := e.settings.Save(context.Background(), settings); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
}

func (e *testEnv) remindersFor(t *testing.T, taskID uint) []db.Reminder {
	t.Helper()
	var rows []db.Reminder
	if err := e.db.Where("task_id = ?", taskID).Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("failed to load reminders: %v", err)
	}
	return rows
}

func (e *testEnv) tickAt(t *testing.T, at time.Time) TickReport {
	t.Helper()
	e.clock.Set(at)
	report := e.scheduler.Tick(context.Background())
	if report.PhaseErrors != 0 {
		t.Fatalf("tick at %v reported %d phase errors", at, report.PhaseErrors)
	}
	return report
}

func testConfig() Config {
	return Config{
		TickInterval:    time.Minute,
		BatchLimit:      100,
		SendTimeout:     time.Second,
		RetentionWindow: 7 * 24 * time.Hour,
		Retry:           db.RetryPolicy{MaxAttempts: 10, BaseDelay: time.Minute, MaxDelay: time.Hour},
		Location:        time.UTC,
	}
}
