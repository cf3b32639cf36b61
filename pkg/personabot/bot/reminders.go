package bot

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"

	"github.com/jholhewres/personabot/pkg/personabot/database"
)

// startReminderLoop starts the background sweep for due reminders. Guarded
// so reconnects never start a second scheduler.
func (b *Bot) startReminderLoop() {
	if !b.reminderLoop.CompareAndSwap(false, true) {
		return
	}

	b.scheduler = cron.New()
	if _, err := b.scheduler.AddFunc("@every 30s", b.deliverDueReminders); err != nil {
		b.logger.Error("scheduling reminder sweep", "error", err)
		return
	}
	b.scheduler.Start()
	b.logger.Info("reminder scheduler started", "interval", "30s")
}

// deliverDueReminders sends every due reminder and deletes it. The row is
// deleted even when delivery fails: a reminder fires at most once, it is
// never retried into the indefinite future.
func (b *Bot) deliverDueReminders() {
	due, err := b.store.DueReminders(time.Now())
	if err != nil {
		b.logger.Error("reading due reminders", "error", err)
		return
	}

	for _, r := range due {
		if err := b.sendReminder(r); err != nil {
			b.logger.Error("delivering reminder", "reminder", r.ID, "channel", r.ChannelID, "error", err)
		} else {
			b.logger.Info("reminder delivered", "reminder", r.ID, "user", r.UserID)
		}
		if _, err := b.store.DeleteReminder(r.ID); err != nil {
			b.logger.Error("deleting reminder", "reminder", r.ID, "error", err)
		}
	}
}

// deliverToChannel posts the reminder back into the channel it was set in.
func (b *Bot) deliverToChannel(r database.Reminder) error {
	_, err := b.session.ChannelMessageSendComplex(r.ChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> Here's your reminder:", r.UserID),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Reminder",
			Description: r.Message,
			Color:       embedColor,
			Footer: &discordgo.MessageEmbedFooter{
				Text: "Set " + r.CreatedTime.Format("2006-01-02 15:04 MST"),
			},
		}},
	})
	return err
}
