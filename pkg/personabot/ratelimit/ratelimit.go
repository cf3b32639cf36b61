// Package ratelimit implements sliding-window admission control for bot
// actions. Each action kind carries a per-user ceiling and optionally a
// guild-wide ceiling; both must pass for a request to be admitted.
//
// The governor stores raw timestamps per key and purges entries older than
// the window lazily on each check, so bursts at window boundaries are
// counted exactly rather than bucketed. State is memory-only: a process
// restart resets all counters.
package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Kind identifies a rate-limited action.
type Kind string

const (
	KindMessage Kind = "message"
	KindCommand Kind = "command"
	KindImage   Kind = "image"
	KindInsult  Kind = "insult"
)

// Limit is a ceiling of Max requests per rolling Window.
type Limit struct {
	Max    int
	Window time.Duration
}

func (l Limit) String() string {
	return fmt.Sprintf("%d per %s", l.Max, l.Window)
}

// Limits configures the governor. User ceilings apply per (kind, user);
// Guild ceilings apply per (kind, guild) and only for kinds present in the
// map.
type Limits struct {
	User  map[Kind]Limit
	Guild map[Kind]Limit
}

// DefaultLimits returns the stock ceilings.
func DefaultLimits() Limits {
	return Limits{
		User: map[Kind]Limit{
			KindMessage: {Max: 10, Window: 60 * time.Second},
			KindCommand: {Max: 5, Window: 60 * time.Second},
			KindImage:   {Max: 3, Window: 300 * time.Second},
			KindInsult:  {Max: 2, Window: 300 * time.Second},
		},
		Guild: map[Kind]Limit{
			KindMessage: {Max: 30, Window: 60 * time.Second},
			KindImage:   {Max: 10, Window: 600 * time.Second},
		},
	}
}

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the action may proceed.
	Allowed bool

	// RetryAfter is how long until the first failing ceiling frees a slot.
	// Zero when Allowed.
	RetryAfter time.Duration

	// Limit describes the ceiling that denied the request, for notices.
	Limit string
}

// Governor tracks request timestamps and decides admission.
type Governor struct {
	mu     sync.Mutex
	limits Limits

	// users holds timestamps per (kind, user id).
	users map[Kind]map[string][]time.Time

	// guilds holds timestamps per (kind, guild id), kept only for kinds
	// that have a guild ceiling configured.
	guilds map[Kind]map[string][]time.Time

	now    func() time.Time
	logger *slog.Logger
}

// NewGovernor creates a governor with the given ceilings.
func NewGovernor(limits Limits, logger *slog.Logger) *Governor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Governor{
		limits: limits,
		users:  make(map[Kind]map[string][]time.Time),
		guilds: make(map[Kind]map[string][]time.Time),
		now:    time.Now,
		logger: logger.With("component", "ratelimit"),
	}
}

// Admit checks whether the user may perform the action now. It is a pure
// check: calling it never consumes quota, so denied attempts do not count
// against the caller. guildID may be empty for actions without guild scope.
func (g *Governor) Admit(kind Kind, userID, guildID string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	if limit, ok := g.limits.User[kind]; ok {
		entries := g.purge(g.userEntries(kind), userID, limit.Window, now)
		if len(entries) >= limit.Max {
			d := denied(entries[0], limit, now)
			g.logger.Warn("rate limit exceeded",
				"kind", string(kind),
				"user", userID,
				"limit", d.Limit,
				"retry_after", d.RetryAfter,
			)
			return d
		}
	}

	if guildID != "" {
		if limit, ok := g.limits.Guild[kind]; ok {
			entries := g.purge(g.guildEntries(kind), guildID, limit.Window, now)
			if len(entries) >= limit.Max {
				d := denied(entries[0], limit, now)
				d.Limit += " (server-wide)"
				g.logger.Warn("server-wide rate limit exceeded",
					"kind", string(kind),
					"guild", guildID,
					"limit", d.Limit,
					"retry_after", d.RetryAfter,
				)
				return d
			}
		}
	}

	return Decision{Allowed: true}
}

// Record registers a performed action. Callers invoke it only after the
// action was admitted and actually carried out.
func (g *Governor) Record(kind Kind, userID, guildID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	byUser := g.userEntries(kind)
	byUser[userID] = append(byUser[userID], now)

	// Guild timestamps are only worth keeping where a guild ceiling exists;
	// otherwise nothing ever purges them.
	if guildID != "" {
		if _, ok := g.limits.Guild[kind]; ok {
			byGuild := g.guildEntries(kind)
			byGuild[guildID] = append(byGuild[guildID], now)
		}
	}
}

// Remaining reports how many requests the user has left for the kind and
// when the window resets.
func (g *Governor) Remaining(kind Kind, userID string) (int, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	limit, ok := g.limits.User[kind]
	if !ok {
		return 0, now
	}

	entries := g.purge(g.userEntries(kind), userID, limit.Window, now)
	remaining := limit.Max - len(entries)
	if remaining < 0 {
		remaining = 0
	}

	reset := now.Add(limit.Window)
	if len(entries) > 0 {
		reset = entries[0].Add(limit.Window)
	}
	return remaining, reset
}

// userEntries returns the per-user timestamp map for a kind, creating it on
// first use.
func (g *Governor) userEntries(kind Kind) map[string][]time.Time {
	m, ok := g.users[kind]
	if !ok {
		m = make(map[string][]time.Time)
		g.users[kind] = m
	}
	return m
}

func (g *Governor) guildEntries(kind Kind) map[string][]time.Time {
	m, ok := g.guilds[kind]
	if !ok {
		m = make(map[string][]time.Time)
		g.guilds[kind] = m
	}
	return m
}

// purge drops entries older than the window and stores the trimmed slice
// back. Timestamps are appended in order, so the slice stays sorted and the
// first surviving entry is the oldest.
func (g *Governor) purge(entries map[string][]time.Time, key string, window time.Duration, now time.Time) []time.Time {
	cutoff := now.Add(-window)
	list := entries[key]

	keep := 0
	for keep < len(list) && !list[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		list = list[keep:]
		entries[key] = list
	}
	return list
}

func denied(oldest time.Time, limit Limit, now time.Time) Decision {
	retry := oldest.Add(limit.Window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return Decision{
		Allowed:    false,
		RetryAfter: retry,
		Limit:      limit.String(),
	}
}

// FormatRetryAfter renders a wait duration for user-facing notices.
func FormatRetryAfter(d time.Duration) string {
	seconds := d.Seconds()
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.1f minutes", seconds/60)
	default:
		return fmt.Sprintf("%.1f hours", seconds/3600)
	}
}
