package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/personabot/pkg/personabot/database"
	"github.com/jholhewres/personabot/pkg/personabot/personas"
	"github.com/jholhewres/personabot/pkg/personabot/ratelimit"
)

var mentionPattern = regexp.MustCompile(`<@!?\d+>`)

const generationApology = "Sorry, I'm having trouble thinking of a response right now. Please try again later."

// onMessageCreate replies in persona when the bot is mentioned in a guild
// channel. Messages from bots, DMs, and messages without a mention are
// ignored.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	if m.GuildID == "" {
		return
	}
	if !mentionsUser(m.Mentions, s.State.User.ID) {
		return
	}

	content := strings.TrimSpace(mentionPattern.ReplaceAllString(m.Content, ""))
	if content == "" {
		return
	}

	if d := b.governor.Admit(ratelimit.KindMessage, m.Author.ID, m.GuildID); !d.Allowed {
		b.replyTo(s, m, fmt.Sprintf("You're sending messages too quickly. Please wait %s and try again.",
			ratelimit.FormatRetryAfter(d.RetryAfter)))
		return
	}

	personaKey, err := b.state.Persona(m.GuildID)
	if err != nil {
		b.logger.Error("reading persona, using default", "guild", m.GuildID, "error", err)
		personaKey = b.cfg.Persona.Default
	}
	persona := personas.GetOrDefault(personaKey)

	history := b.state.History(m.GuildID, m.ChannelID)
	senderName := memberDisplayName(m.Member, m.Author)
	messages := BuildPrompt(persona.SystemPrompt, history, senderName, content)

	reply, err := b.llm.Complete(context.Background(), messages)
	if err != nil {
		b.logger.Error("generating reply",
			"guild", m.GuildID, "channel", m.ChannelID, "persona", persona.Key, "error", err)
		b.replyTo(s, m, generationApology)
		return
	}
	b.governor.Record(ratelimit.KindMessage, m.Author.ID, m.GuildID)

	maxSentences := b.state.UserMaxSentences(m.GuildID, m.Author.ID, b.cfg.Responses.MaxSentences)
	reply = LimitSentences(b.splitter, reply, maxSentences, b.logger)

	b.state.AppendTurn(m.GuildID, m.ChannelID, database.ChatTurn{
		Role:    database.RoleUser,
		Name:    SanitizeName(senderName),
		Content: content,
	})
	b.state.AppendTurn(m.GuildID, m.ChannelID, database.ChatTurn{
		Role:    database.RoleAssistant,
		Content: reply,
	})

	b.replyTo(s, m, reply)
}

func (b *Bot) replyTo(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, content, m.Reference()); err != nil {
		b.logger.Error("sending reply", "channel", m.ChannelID, "error", err)
	}
}

func mentionsUser(mentions []*discordgo.User, userID string) bool {
	for _, u := range mentions {
		if u != nil && u.ID == userID {
			return true
		}
	}
	return false
}

// memberDisplayName picks the server nickname when set, then the global
// display name, then the account username.
func memberDisplayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}
