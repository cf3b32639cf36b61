package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/personabot/pkg/personabot/database"
)

// channelBackfiller seeds history for untracked channels from Discord's own
// message log, so the bot joins an ongoing conversation with context.
type channelBackfiller struct {
	session *discordgo.Session
}

func (f *channelBackfiller) RecentMessages(channelID string, limit int) ([]database.ChatTurn, error) {
	msgs, err := f.session.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("fetching channel messages: %w", err)
	}

	botID := f.session.State.User.ID
	turns := make([]database.ChatTurn, 0, len(msgs))

	// Discord returns newest first; walk backwards for chronological order.
	for idx := len(msgs) - 1; idx >= 0; idx-- {
		m := msgs[idx]
		if m.Author == nil {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}

		if m.Author.ID == botID {
			turns = append(turns, database.ChatTurn{
				Role:    database.RoleAssistant,
				Content: content,
			})
			continue
		}
		if m.Author.Bot {
			continue
		}
		turns = append(turns, database.ChatTurn{
			Role:    database.RoleUser,
			Name:    SanitizeName(m.Author.Username),
			Content: content,
		})
	}
	return turns, nil
}
