package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Intents needed for slash commands and chat reactions. Message content is a
// privileged intent and must be enabled for the application.
const Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent

// NewSession builds an unopened gateway session for a bot token.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = Intents
	return session, nil
}

// Run attaches the bot to session, opens the gateway and blocks until ctx
// is cancelled.
func (b *Bot) Run(ctx context.Context, session *discordgo.Session) error {
	removers := []func(){
		session.AddHandler(func(_ *discordgo.Session, ready *discordgo.Ready) {
			b.logger.Info("gateway ready",
				zap.String("user", ready.User.Username),
				zap.Int("guilds", len(ready.Guilds)))
		}),
		session.AddHandler(func(_ *discordgo.Session, event *discordgo.InteractionCreate) {
			b.HandleInteraction(ctx, event.Interaction)
		}),
		session.AddHandler(func(_ *discordgo.Session, event *discordgo.MessageCreate) {
			b.HandleMessage(ctx, event.Message)
		}),
	}
	defer func() {
		for _, remove := range removers {
			remove()
		}
	}()

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	<-ctx.Done()
	if err := session.Close(); err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}
	return nil
}
