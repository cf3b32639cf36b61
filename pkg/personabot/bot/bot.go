// Package bot wires the Discord gateway to persona-driven text generation:
// mention handling, slash commands, rate governance, and the reminder
// scheduler.
package bot

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"

	"github.com/jholhewres/personabot/pkg/personabot/config"
	"github.com/jholhewres/personabot/pkg/personabot/database"
	"github.com/jholhewres/personabot/pkg/personabot/llm"
	"github.com/jholhewres/personabot/pkg/personabot/ratelimit"
	"github.com/jholhewres/personabot/pkg/personabot/state"
)

// Bot is the running Discord bot. Create it with New, then Start to connect.
type Bot struct {
	cfg        *config.Config
	logger     *slog.Logger
	baseLogger *slog.Logger
	store      *database.Store
	state    *state.Cache
	governor *ratelimit.Governor
	llm      *llm.Client
	splitter SentenceSplitter

	session *discordgo.Session

	scheduler    *cron.Cron
	reminderLoop atomic.Bool

	// sendReminder delivers one reminder; swapped out in tests.
	sendReminder func(r database.Reminder) error
}

// New creates a bot from configuration. The store is owned by the caller.
func New(cfg *config.Config, store *database.Store, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		cfg:        cfg,
		logger:     logger.With("component", "bot"),
		baseLogger: logger,
		store:      store,
		governor: ratelimit.NewGovernor(cfg.Limits(), logger),
		llm:      llm.NewClient(cfg.API, logger),
		splitter: NewSentenceSplitter(),
	}
	b.sendReminder = b.deliverToChannel
	return b
}

// Start opens the gateway connection, registers the slash commands, and
// starts the reminder scheduler. It returns once the session is connected.
func (b *Bot) Start() error {
	session, err := discordgo.New("Bot " + b.cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	cache, err := state.New(b.store, b.cfg.History.Limit, b.cfg.Persona.Default,
		&channelBackfiller{session: session}, b.baseLogger)
	if err != nil {
		return err
	}
	b.state = cache
	b.session = session

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onInteractionCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("opening discord connection: %w", err)
	}

	b.startReminderLoop()
	b.logger.Info("bot started",
		"name", b.cfg.Name,
		"user", session.State.User.Username,
		"default_persona", b.cfg.Persona.Default,
	)
	return nil
}

// Stop halts the scheduler and closes the gateway connection.
func (b *Bot) Stop() error {
	if b.scheduler != nil {
		b.scheduler.Stop()
	}
	if b.session != nil {
		if err := b.session.Close(); err != nil {
			return fmt.Errorf("closing discord connection: %w", err)
		}
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("gateway ready", "guilds", len(r.Guilds))

	appID := b.cfg.Discord.ApplicationID
	if appID == "" {
		appID = s.State.User.ID
	}
	for _, cmd := range commandDefinitions() {
		if _, err := s.ApplicationCommandCreate(appID, "", cmd); err != nil {
			b.logger.Error("registering command", "command", cmd.Name, "error", err)
		}
	}
}
