package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/sortie/internal/mechs"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
)

// HandleMessage reacts to guild chat: a message naming a mech property gets
// the selected mech's value, a skill name gets a percentile roll.
func (b *Bot) HandleMessage(ctx context.Context, message *discordgo.Message) {
	if message == nil || message.Author == nil || message.Author.Bot || message.GuildID == "" {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			b.logger.Error("message handler panicked",
				zap.Any("panic", recovered),
				zap.String("channel_id", message.ChannelID),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	key := selection.Key{ChannelID: message.ChannelID, UserID: message.Author.ID}
	text, ok, err := b.answerMessage(ctx, key, message.Content)
	if !ok {
		return
	}
	if err != nil {
		described, expected := describeError(err)
		if !expected {
			b.logger.Error("message reaction failed",
				zap.String("channel_id", key.ChannelID),
				zap.String("user_id", key.UserID),
				zap.Error(err))
		}
		text = described
	}
	_, sendErr := b.transport.Send(message.ChannelID, &discordgo.MessageSend{
		Content:   text,
		Reference: message.Reference(),
	})
	if sendErr != nil {
		b.logger.Warn("message reply failed", zap.String("channel_id", key.ChannelID), zap.Error(sendErr))
	}
}

// answerMessage returns the reply for content. ok is false when the message
// is not addressed to the bot.
func (b *Bot) answerMessage(ctx context.Context, key selection.Key, content string) (string, bool, error) {
	if property, ok := mechs.MatchProperty(content); ok {
		text, err := b.mechs.AnswerProperty(ctx, key, property)
		if errors.Is(err, mechs.ErrNoMechSelected) {
			return "No mech selected here. Use `/ms select` first.", true, nil
		}
		return text, true, err
	}

	roll, ok, err := b.characters.TrySkillRoll(ctx, key, content)
	if !ok {
		return "", false, nil
	}
	if err != nil {
		return "", true, err
	}
	b.logger.Debug("skill rolled",
		zap.String("user_id", key.UserID),
		zap.String("skill", roll.Skill),
		zap.Int("raw", roll.Raw))
	return fmt.Sprintf("```\n%s\n```", roll.Text()), true, nil
}
