package bot

import (
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jholhewres/personabot/pkg/personabot/database"
)

func newReminderBot(t *testing.T, send func(r database.Reminder) error) (*Bot, *database.Store) {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "bot.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return &Bot{
		store:        store,
		logger:       slog.Default(),
		sendReminder: send,
	}, store
}

func TestDeliverDueReminders(t *testing.T) {
	var delivered []database.Reminder
	b, store := newReminderBot(t, func(r database.Reminder) error {
		delivered = append(delivered, r)
		return nil
	})

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	if _, err := store.AddReminder("user1", "chan1", "guild1", "due now", past); err != nil {
		t.Fatalf("AddReminder failed: %v", err)
	}
	if _, err := store.AddReminder("user1", "chan1", "guild1", "not yet", future); err != nil {
		t.Fatalf("AddReminder failed: %v", err)
	}

	b.deliverDueReminders()

	if len(delivered) != 1 {
		t.Fatalf("delivered %d reminders, want 1", len(delivered))
	}
	if delivered[0].Message != "due now" {
		t.Errorf("delivered message = %q", delivered[0].Message)
	}

	// The due reminder is gone; the future one survives.
	left, err := store.DueReminders(time.Now().Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("DueReminders failed: %v", err)
	}
	if len(left) != 1 || left[0].Message != "not yet" {
		t.Errorf("remaining reminders = %+v", left)
	}
}

func TestReminderFiresAtMostOnce(t *testing.T) {
	calls := 0
	b, store := newReminderBot(t, func(r database.Reminder) error {
		calls++
		return errors.New("channel unavailable")
	})

	if _, err := store.AddReminder("user1", "chan1", "guild1", "flaky", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("AddReminder failed: %v", err)
	}

	// The row is deleted even though delivery failed, so a second sweep
	// finds nothing.
	b.deliverDueReminders()
	b.deliverDueReminders()

	if calls != 1 {
		t.Errorf("delivery attempted %d times, want 1", calls)
	}
}

func TestReminderLoopStartsOnce(t *testing.T) {
	b, _ := newReminderBot(t, func(r database.Reminder) error { return nil })
	t.Cleanup(func() {
		if b.scheduler != nil {
			b.scheduler.Stop()
		}
	})

	b.startReminderLoop()
	first := b.scheduler
	if first == nil {
		t.Fatal("scheduler not started")
	}

	b.startReminderLoop()
	if b.scheduler != first {
		t.Error("second start replaced the scheduler")
	}
}
