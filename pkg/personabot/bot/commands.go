package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/personabot/pkg/personabot/database"
	"github.com/jholhewres/personabot/pkg/personabot/llm"
	"github.com/jholhewres/personabot/pkg/personabot/permissions"
	"github.com/jholhewres/personabot/pkg/personabot/personas"
	"github.com/jholhewres/personabot/pkg/personabot/ratelimit"
)

const embedColor = 0x5865F2

// commandDefinitions returns the slash commands registered on startup.
func commandDefinitions() []*discordgo.ApplicationCommand {
	personaChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0)
	for _, p := range personas.All() {
		personaChoices = append(personaChoices, &discordgo.ApplicationCommandOptionChoice{
			Name:  p.Name,
			Value: p.Key,
		})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "persona",
			Description: "Change the personality the bot uses in this server",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "persona",
					Description: "The persona to switch to",
					Required:    true,
					Choices:     personaChoices,
				},
			},
		},
		{
			Name:        "generate_image",
			Description: "Generate an image from a text prompt",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prompt",
					Description: "What to draw",
					Required:    true,
				},
			},
		},
		{
			Name:        "set_response_length",
			Description: "Limit how many sentences the bot replies to you with",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "sentences",
					Description: "Maximum sentences per reply (0 for unlimited)",
					Required:    true,
					MinValue:    floatPtr(0),
					MaxValue:    10,
				},
			},
		},
		{
			Name:        "purge",
			Description: "Delete recent messages from this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "How many messages to delete (1-100)",
					Required:    true,
					MinValue:    floatPtr(1),
					MaxValue:    100,
				},
			},
		},
		{
			Name:        "warn",
			Description: "Issue a warning to a user",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The user to warn",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Why the warning is issued",
					Required:    false,
				},
			},
		},
		{
			Name:        "warnings",
			Description: "List the warnings a user has received",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The user to look up",
					Required:    true,
				},
			},
		},
		{
			Name:        "remindme",
			Description: "Get a reminder in this channel later",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "time",
					Description: "When to remind you, like 1h30m, 2h, or 45m",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "What to remind you about",
					Required:    true,
				},
			},
		},
		{
			Name:        "insult",
			Description: "Have the bot playfully insult someone, in persona",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Who to insult (random member when omitted)",
					Required:    false,
				},
			},
		},
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	b.logger.Debug("command received", "command", name, "guild", i.GuildID)

	switch name {
	case "persona":
		b.handlePersona(s, i)
	case "generate_image":
		b.handleGenerateImage(s, i)
	case "set_response_length":
		b.handleSetResponseLength(s, i)
	case "purge":
		b.handlePurge(s, i)
	case "warn":
		b.handleWarn(s, i)
	case "warnings":
		b.handleWarnings(s, i)
	case "remindme":
		b.handleRemindMe(s, i)
	case "insult":
		b.handleInsult(s, i)
	default:
		b.logger.Warn("unknown command", "command", name)
	}
}

// gate runs the shared preconditions for every command: guild-only scope,
// the required permission level, and rate admission. It sends the denial
// notice itself; callers just stop on false. Quota is consumed separately,
// after the command actually does its work.
func (b *Bot) gate(s *discordgo.Session, i *discordgo.InteractionCreate, required permissions.Level, kind ratelimit.Kind) bool {
	if i.GuildID == "" {
		b.respond(s, i, "This command can only be used in a server.", true)
		return false
	}
	if required > permissions.Everyone && !permissions.Check(s, i, required) {
		b.respond(s, i, fmt.Sprintf("You need %s permissions to use this command.", required), true)
		return false
	}
	if d := b.governor.Admit(kind, interactionUser(i).ID, i.GuildID); !d.Allowed {
		b.respond(s, i, fmt.Sprintf("You've hit the rate limit (%s). Please wait %s and try again.",
			d.Limit, ratelimit.FormatRetryAfter(d.RetryAfter)), true)
		return false
	}
	return true
}

// ---------- Handlers ----------

func (b *Bot) handlePersona(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.gate(s, i, permissions.Moderator, ratelimit.KindCommand) {
		return
	}

	key := optionMap(i)["persona"].StringValue()
	p, err := personas.Get(key)
	if err != nil {
		b.respond(s, i, fmt.Sprintf("I don't know a persona called %q.", key), true)
		return
	}

	previous, _ := b.state.Persona(i.GuildID)
	if err := b.state.SetPersona(i.GuildID, p.Key); err != nil {
		b.logger.Error("setting persona", "guild", i.GuildID, "persona", p.Key, "error", err)
		b.respond(s, i, "Something went wrong saving the persona. Please try again.", true)
		return
	}
	b.governor.Record(ratelimit.KindCommand, interactionUser(i).ID, i.GuildID)

	notice := fmt.Sprintf("Persona changed to **%s**.", p.Name)
	if prev, perr := personas.Get(previous); perr == nil && prev.Key != p.Key {
		notice = fmt.Sprintf("Persona changed from **%s** to **%s**.", prev.Name, p.Name)
	}

	if err := s.GuildMemberNickname(i.GuildID, "@me", p.Nickname); err != nil {
		b.logger.Warn("updating nickname", "guild", i.GuildID, "error", err)
		notice += " I couldn't update my nickname, though."
	}

	b.logger.Info("persona changed", "guild", i.GuildID, "persona", p.Key,
		"moderator", interactionUser(i).ID)
	b.respond(s, i, notice, false)
}

func (b *Bot) handleGenerateImage(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.gate(s, i, permissions.Admin, ratelimit.KindImage) {
		return
	}

	prompt := optionMap(i)["prompt"].StringValue()
	if err := b.deferResponse(s, i, false); err != nil {
		b.logger.Error("deferring response", "error", err)
		return
	}

	url, err := b.llm.GenerateImage(context.Background(), prompt)
	if err != nil {
		b.logger.Error("generating image", "guild", i.GuildID, "error", err)
		b.followUp(s, i, "Sorry, I couldn't generate that image. Please try again later.")
		return
	}
	b.governor.Record(ratelimit.KindImage, interactionUser(i).ID, i.GuildID)

	b.followUpEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Generated Image",
		Description: prompt,
		Color:       embedColor,
		Image:       &discordgo.MessageEmbedImage{URL: url},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Requested by " + memberDisplayName(i.Member, interactionUser(i)),
		},
	})
}

func (b *Bot) handleSetResponseLength(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.gate(s, i, permissions.Everyone, ratelimit.KindCommand) {
		return
	}

	count := int(optionMap(i)["sentences"].IntValue())
	if count < 0 || count > 10 {
		b.respond(s, i, "Sentence count must be between 0 and 10.", true)
		return
	}

	userID := interactionUser(i).ID
	if err := b.state.SetUserMaxSentences(i.GuildID, userID, count); err != nil {
		b.logger.Error("saving response length", "guild", i.GuildID, "user", userID, "error", err)
		b.respond(s, i, "Something went wrong saving your preference. Please try again.", true)
		return
	}
	b.governor.Record(ratelimit.KindCommand, userID, i.GuildID)

	if count == 0 {
		b.respond(s, i, "Got it, my replies to you will no longer be shortened.", true)
		return
	}
	b.respond(s, i, fmt.Sprintf("Got it, my replies to you will be limited to %d sentence(s).", count), true)
}

func (b *Bot) handlePurge(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.gate(s, i, permissions.Moderator, ratelimit.KindCommand) {
		return
	}

	amount := int(optionMap(i)["amount"].IntValue())
	if amount < 1 || amount > 100 {
		b.respond(s, i, "Amount must be between 1 and 100.", true)
		return
	}

	if err := b.deferResponse(s, i, true); err != nil {
		b.logger.Error("deferring response", "error", err)
		return
	}

	msgs, err := s.ChannelMessages(i.ChannelID, amount, "", "", "")
	if err != nil {
		b.logger.Error("fetching messages for purge", "channel", i.ChannelID, "error", err)
		b.followUp(s, i, "I couldn't read this channel's messages.")
		return
	}
	if len(msgs) == 0 {
		b.followUp(s, i, "There's nothing here to delete.")
		return
	}

	ids := make([]string, len(msgs))
	for idx, m := range msgs {
		ids[idx] = m.ID
	}

	// Bulk delete needs at least two messages.
	if len(ids) == 1 {
		err = s.ChannelMessageDelete(i.ChannelID, ids[0])
	} else {
		err = s.ChannelMessagesBulkDelete(i.ChannelID, ids)
	}
	if err != nil {
		b.logger.Error("deleting messages", "channel", i.ChannelID, "error", err)
		if isForbidden(err) {
			b.followUp(s, i, "I don't have permission to delete messages in this channel.")
		} else {
			b.followUp(s, i, "I couldn't delete those messages. Note that messages older than two weeks can't be bulk deleted.")
		}
		return
	}
	b.governor.Record(ratelimit.KindCommand, interactionUser(i).ID, i.GuildID)

	b.logger.Info("messages purged", "guild", i.GuildID, "channel", i.ChannelID,
		"count", len(ids), "moderator", interactionUser(i).ID)
	b.followUp(s, i, fmt.Sprintf("Deleted %d message(s).", len(ids)))
}

func (b *Bot) handleWarn(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.gate(s, i, permissions.Moderator, ratelimit.KindCommand) {
		return
	}

	opts := optionMap(i)
	target := opts["user"].UserValue(s)
	reason := ""
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}

	moderator := interactionUser(i)
	if _, err := b.store.AddWarning(i.GuildID, target.ID, moderator.ID, reason); err != nil {
		b.logger.Error("recording warning", "guild", i.GuildID, "user", target.ID, "error", err)
		b.respond(s, i, "Something went wrong recording the warning. Please try again.", true)
		return
	}
	b.governor.Record(ratelimit.KindCommand, moderator.ID, i.GuildID)

	total := 0
	if list, err := b.store.Warnings(i.GuildID, target.ID); err == nil {
		total = len(list)
	}

	displayReason := reason
	if displayReason == "" {
		displayReason = "No reason provided"
	}

	b.logger.Info("warning issued", "guild", i.GuildID, "user", target.ID,
		"moderator", moderator.ID, "total", total)
	b.respondEmbed(s, i, &discordgo.MessageEmbed{
		Title: "Warning Issued",
		Color: 0xE67E22,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s>", target.ID), Inline: true},
			{Name: "Moderator", Value: fmt.Sprintf("<@%s>", moderator.ID), Inline: true},
			{Name: "Reason", Value: displayReason},
			{Name: "Total Warnings", Value: strconv.Itoa(total), Inline: true},
		},
	}, false)

	b.dmWarning(s, i.GuildID, target, displayReason, total)
}

// dmWarning tells the warned user directly. Best effort: users can block
// DMs, so failure is only logged.
func (b *Bot) dmWarning(s *discordgo.Session, guildID string, target *discordgo.User, reason string, total int) {
	guildName := "a server"
	if g, err := s.State.Guild(guildID); err == nil && g.Name != "" {
		guildName = g.Name
	}

	ch, err := s.UserChannelCreate(target.ID)
	if err != nil {
		b.logger.Debug("opening DM channel", "user", target.ID, "error", err)
		return
	}
	_, err = s.ChannelMessageSendEmbed(ch.ID, &discordgo.MessageEmbed{
		Title:       "You received a warning",
		Description: fmt.Sprintf("You were warned in **%s**.", guildName),
		Color:       0xE67E22,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: reason},
			{Name: "Total Warnings", Value: strconv.Itoa(total), Inline: true},
		},
	})
	if err != nil {
		b.logger.Debug("sending warning DM", "user", target.ID, "error", err)
	}
}

func (b *Bot) handleWarnings(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.gate(s, i, permissions.Moderator, ratelimit.KindCommand) {
		return
	}

	target := optionMap(i)["user"].UserValue(s)
	list, err := b.store.Warnings(i.GuildID, target.ID)
	if err != nil {
		b.logger.Error("listing warnings", "guild", i.GuildID, "user", target.ID, "error", err)
		b.respond(s, i, "Something went wrong looking up warnings. Please try again.", true)
		return
	}
	b.governor.Record(ratelimit.KindCommand, interactionUser(i).ID, i.GuildID)

	if len(list) == 0 {
		b.respond(s, i, fmt.Sprintf("%s has no warnings.", target.Username), true)
		return
	}

	const maxShown = 10
	fields := make([]*discordgo.MessageEmbedField, 0, maxShown)
	for idx, w := range list {
		if idx == maxShown {
			break
		}
		reason := w.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  w.Timestamp.Format("2006-01-02 15:04 MST"),
			Value: fmt.Sprintf("%s (by <@%s>)", reason, w.ModeratorID),
		})
	}

	b.respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Warnings for %s", target.Username),
		Description: fmt.Sprintf("%d warning(s) on record, newest first.", len(list)),
		Color:       0xE67E22,
		Fields:      fields,
	}, true)
}

func (b *Bot) handleRemindMe(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.gate(s, i, permissions.Everyone, ratelimit.KindCommand) {
		return
	}

	opts := optionMap(i)
	when := opts["time"].StringValue()
	message := opts["message"].StringValue()

	d, err := parseReminderDuration(when)
	if err != nil {
		b.respond(s, i, "I couldn't understand that time. Use a format like `1h30m`, `2h`, or `45m`.", true)
		return
	}

	userID := interactionUser(i).ID
	if _, err := b.store.AddReminder(userID, i.ChannelID, i.GuildID, message, time.Now().Add(d)); err != nil {
		b.logger.Error("saving reminder", "user", userID, "error", err)
		b.respond(s, i, "Something went wrong saving your reminder. Please try again.", true)
		return
	}
	b.governor.Record(ratelimit.KindCommand, userID, i.GuildID)

	b.respond(s, i, fmt.Sprintf("Okay! I'll remind you here in %s.", formatDuration(d)), true)
}

func (b *Bot) handleInsult(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.gate(s, i, permissions.Moderator, ratelimit.KindInsult) {
		return
	}

	var target *discordgo.User
	if opt, ok := optionMap(i)["user"]; ok {
		target = opt.UserValue(s)
	} else {
		target = b.randomMember(s, i.GuildID, interactionUser(i).ID)
		if target == nil {
			b.respond(s, i, "I couldn't find anyone here to insult.", true)
			return
		}
	}

	if err := b.deferResponse(s, i, false); err != nil {
		b.logger.Error("deferring response", "error", err)
		return
	}

	personaKey, err := b.state.Persona(i.GuildID)
	if err != nil {
		personaKey = b.cfg.Persona.Default
	}
	persona := personas.GetOrDefault(personaKey)

	prompt := fmt.Sprintf(
		"Create a humorous, light-hearted insult aimed at %s. Keep it playful and teasing, never genuinely cruel. One or two sentences.",
		target.Username)
	text, err := b.llm.Complete(context.Background(), []llm.Message{
		{Role: "system", Content: persona.SystemPrompt},
		{Role: database.RoleUser, Content: prompt},
	})
	if err != nil {
		b.logger.Error("generating insult", "guild", i.GuildID, "error", err)
		b.followUp(s, i, "Sorry, I couldn't come up with anything. Consider yourself lucky.")
		return
	}
	b.governor.Record(ratelimit.KindInsult, interactionUser(i).ID, i.GuildID)

	b.followUp(s, i, fmt.Sprintf("<@%s> %s", target.ID, text))
}

// randomMember picks a random non-bot member other than the invoker from the
// gateway's guild state.
func (b *Bot) randomMember(s *discordgo.Session, guildID, excludeID string) *discordgo.User {
	g, err := s.State.Guild(guildID)
	if err != nil {
		b.logger.Error("reading guild state", "guild", guildID, "error", err)
		return nil
	}

	candidates := make([]*discordgo.User, 0, len(g.Members))
	for _, m := range g.Members {
		if m.User == nil || m.User.Bot || m.User.ID == excludeID {
			continue
		}
		candidates = append(candidates, m.User)
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.Intn(len(candidates))]
}

// ---------- Interaction Helpers ----------

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Error("responding to interaction", "error", err)
	}
}

func (b *Bot) respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Error("responding to interaction", "error", err)
	}
}

func (b *Bot) deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
}

func (b *Bot) followUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: content}); err != nil {
		b.logger.Error("sending follow-up", "error", err)
	}
}

func (b *Bot) followUpEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	params := &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}}
	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		b.logger.Error("sending follow-up", "error", err)
	}
}

// interactionUser returns the invoking user, wherever the payload carries it.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func isForbidden(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil &&
		restErr.Response.StatusCode == http.StatusForbidden
}

func floatPtr(f float64) *float64 {
	return &f
}

// ---------- Reminder Time Parsing ----------

var (
	hoursPattern   = regexp.MustCompile(`(\d+)\s*h`)
	minutesPattern = regexp.MustCompile(`(\d+)\s*m`)
)

// parseReminderDuration reads durations like "1h30m", "2h", or "45m".
func parseReminderDuration(input string) (time.Duration, error) {
	input = strings.ToLower(strings.TrimSpace(input))

	var d time.Duration
	if m := hoursPattern.FindStringSubmatch(input); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("parsing hours in %q: %w", input, err)
		}
		d += time.Duration(n) * time.Hour
	}
	if m := minutesPattern.FindStringSubmatch(input); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("parsing minutes in %q: %w", input, err)
		}
		d += time.Duration(n) * time.Minute
	}

	if d <= 0 {
		return 0, fmt.Errorf("no duration found in %q", input)
	}
	return d, nil
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%d hour(s) and %d minute(s)", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%d hour(s)", hours)
	default:
		return fmt.Sprintf("%d minute(s)", minutes)
	}
}
