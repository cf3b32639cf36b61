// Package state holds the in-process mirror of per-server configuration and
// recent chat history. The cache is never authoritative: configuration
// writes go through to the database first (write-through), and the history
// shadow is a bounded convenience buffer hydrated from the store on demand.
package state

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jholhewres/personabot/pkg/personabot/database"
)

// cacheSize bounds how many guild states stay resident. Evicted guilds are
// transparently re-read from the store on next access.
const cacheSize = 1024

// ChannelBackfiller seeds history for a channel that has none in the store,
// from the platform's own recent-message log. Implemented by the Discord
// layer.
type ChannelBackfiller interface {
	// RecentMessages returns up to limit turns in chronological order,
	// with user names already sanitized.
	RecentMessages(channelID string, limit int) ([]database.ChatTurn, error)
}

// GuildState is the cached view of one guild. All access goes through
// Cache methods, which hold the per-guild mutex across the store round-trip
// so read-modify-write sequences on the shadow stay atomic under
// discordgo's concurrent handler goroutines.
type GuildState struct {
	mu sync.Mutex

	guildID  string
	persona  string
	settings database.ServerSettings

	// history is the per-channel shadow, bounded at 2× the history limit.
	history map[string][]database.ChatTurn
}

// Cache is the process-scoped server-state cache. Constructed once at
// startup and passed into every handler; there is no package-level
// singleton.
type Cache struct {
	store          *database.Store
	states         *lru.Cache[string, *GuildState]
	historyLimit   int
	defaultPersona string
	backfill       ChannelBackfiller
	logger         *slog.Logger
}

// New creates a cache over the given store. backfill may be nil; then
// channels with no stored history simply start empty.
func New(store *database.Store, historyLimit int, defaultPersona string, backfill ChannelBackfiller, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	states, err := lru.New[string, *GuildState](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating state cache: %w", err)
	}
	return &Cache{
		store:          store,
		states:         states,
		historyLimit:   historyLimit,
		defaultPersona: defaultPersona,
		backfill:       backfill,
		logger:         logger.With("component", "state"),
	}, nil
}

// getOrCreate returns the cached state for a guild, loading or initializing
// it via the store on a miss.
func (c *Cache) getOrCreate(guildID string) (*GuildState, error) {
	if st, ok := c.states.Get(guildID); ok {
		return st, nil
	}

	data, err := c.store.ServerData(guildID, c.defaultPersona)
	if err != nil {
		return nil, err
	}

	st := &GuildState{
		guildID:  guildID,
		persona:  data.Persona,
		settings: data.Settings,
		history:  make(map[string][]database.ChatTurn),
	}
	c.states.Add(guildID, st)
	return st, nil
}

// Persona returns the guild's active persona key, initializing the guild
// with the default persona on first sight.
func (c *Cache) Persona(guildID string) (string, error) {
	st, err := c.getOrCreate(guildID)
	if err != nil {
		return "", err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.persona, nil
}

// SetPersona updates the persona in the store and then in the cached copy.
// Write-through: if the store write fails the cache is left untouched, so
// the two never diverge.
func (c *Cache) SetPersona(guildID, persona string) error {
	st, err := c.getOrCreate(guildID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := c.store.SetPersona(guildID, persona); err != nil {
		return err
	}
	st.persona = persona
	return nil
}

// SetUserMaxSentences stores a user's reply-length preference write-through.
func (c *Cache) SetUserMaxSentences(guildID, userID string, maxSentences int) error {
	st, err := c.getOrCreate(guildID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := c.store.SetUserMaxSentences(guildID, userID, maxSentences, c.defaultPersona); err != nil {
		return err
	}
	if st.settings.Users == nil {
		st.settings.Users = make(map[string]database.UserPreferences)
	}
	prefs := st.settings.Users[userID]
	prefs.MaxSentences = &maxSentences
	st.settings.Users[userID] = prefs
	return nil
}

// UserMaxSentences returns a user's reply-length preference from the cached
// settings, or the given default.
func (c *Cache) UserMaxSentences(guildID, userID string, defaultMax int) int {
	st, err := c.getOrCreate(guildID)
	if err != nil {
		c.logger.Error("reading guild state", "guild", guildID, "error", err)
		return defaultMax
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if prefs, ok := st.settings.Users[userID]; ok && prefs.MaxSentences != nil {
		return *prefs.MaxSentences
	}
	return defaultMax
}

// History returns up to the configured limit of recent turns for a channel,
// oldest first. Resolution order: shadow buffer, then store, then the
// platform backfiller. Backfilled turns are persisted immediately so the
// seed happens at most once; a store read failure degrades to an empty
// context rather than failing the reply.
func (c *Cache) History(guildID, channelID string) []database.ChatTurn {
	st, err := c.getOrCreate(guildID)
	if err != nil {
		c.logger.Error("reading guild state", "guild", guildID, "error", err)
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if shadow, ok := st.history[channelID]; ok {
		return tail(shadow, c.historyLimit)
	}

	turns, err := c.store.History(guildID, channelID, c.historyLimit)
	if err != nil {
		c.logger.Error("reading history, continuing without context",
			"guild", guildID, "channel", channelID, "error", err)
		return nil
	}

	if len(turns) == 0 && c.backfill != nil {
		turns = c.seedFromPlatform(guildID, channelID)
	}

	st.history[channelID] = turns
	return tail(turns, c.historyLimit)
}

// seedFromPlatform pulls recent messages from the platform log and persists
// them, so the next process start finds them in the store.
func (c *Cache) seedFromPlatform(guildID, channelID string) []database.ChatTurn {
	turns, err := c.backfill.RecentMessages(channelID, c.historyLimit)
	if err != nil {
		c.logger.Error("backfilling history", "channel", channelID, "error", err)
		return nil
	}
	for _, turn := range turns {
		if err := c.store.AppendMessage(guildID, channelID, turn); err != nil {
			c.logger.Error("persisting backfilled turn", "channel", channelID, "error", err)
		}
	}
	if len(turns) > 0 {
		c.logger.Info("seeded channel history from platform",
			"guild", guildID, "channel", channelID, "turns", len(turns))
	}
	return turns
}

// AppendTurn records a new turn in the store and the shadow. A store write
// failure is logged but never blocks the reply; the shadow is updated
// regardless so the in-process context stays coherent.
func (c *Cache) AppendTurn(guildID, channelID string, turn database.ChatTurn) {
	st, err := c.getOrCreate(guildID)
	if err != nil {
		c.logger.Error("reading guild state", "guild", guildID, "error", err)
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := c.store.AppendMessage(guildID, channelID, turn); err != nil {
		c.logger.Error("persisting turn", "guild", guildID, "channel", channelID, "error", err)
	}

	shadow := append(st.history[channelID], turn)
	if max := 2 * c.historyLimit; len(shadow) > max {
		shadow = shadow[len(shadow)-max:]
	}
	st.history[channelID] = shadow
}

// tail returns the last n elements.
func tail(turns []database.ChatTurn, n int) []database.ChatTurn {
	if len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}
