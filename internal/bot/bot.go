// Package bot turns Discord interactions and chat messages into calls on the
// board, character, mech and parts services and renders the replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"github.com/MarcoPoloResearchLab/sortie/internal/board"
	"github.com/MarcoPoloResearchLab/sortie/internal/characters"
	"github.com/MarcoPoloResearchLab/sortie/internal/mechs"
	"github.com/MarcoPoloResearchLab/sortie/internal/parts"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
	"github.com/MarcoPoloResearchLab/sortie/internal/session"
	"github.com/MarcoPoloResearchLab/sortie/internal/users"
)

const genericFailure = "Something went wrong. Please try again."

var (
	errMissingTransport  = errors.New("transport is required")
	errMissingBoards     = errors.New("board service is required")
	errMissingCharacters = errors.New("character service is required")
	errMissingMechs      = errors.New("mech service is required")
	errMissingParts      = errors.New("parts service is required")
	errMissingSessions   = errors.New("session store is required")
)

// PlayerDirectory records who is interacting with the bot.
type PlayerDirectory interface {
	Touch(ctx context.Context, profile users.Profile) error
}

// SpectatorIssuer mints read-only board links.
type SpectatorIssuer interface {
	IssueSpectatorToken(ctx context.Context, channelID string) (string, time.Time, error)
}

// Config wires the bot to its services. Users and Spectators are optional.
type Config struct {
	Transport        Transport
	Boards           *board.Service
	Characters       *characters.Service
	Mechs            *mechs.Service
	Parts            *parts.Service
	Sessions         *session.Store
	Users            PlayerDirectory
	Spectators       SpectatorIssuer
	SpectatorBaseURL string
	Logger           *zap.Logger
}

// Bot handles gateway events.
type Bot struct {
	transport        Transport
	boards           *board.Service
	characters       *characters.Service
	mechs            *mechs.Service
	parts            *parts.Service
	sessions         *session.Store
	users            PlayerDirectory
	spectators       SpectatorIssuer
	spectatorBaseURL string
	logger           *zap.Logger
}

func New(cfg Config) (*Bot, error) {
	switch {
	case cfg.Transport == nil:
		return nil, errMissingTransport
	case cfg.Boards == nil:
		return nil, errMissingBoards
	case cfg.Characters == nil:
		return nil, errMissingCharacters
	case cfg.Mechs == nil:
		return nil, errMissingMechs
	case cfg.Parts == nil:
		return nil, errMissingParts
	case cfg.Sessions == nil:
		return nil, errMissingSessions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		transport:        cfg.Transport,
		boards:           cfg.Boards,
		characters:       cfg.Characters,
		mechs:            cfg.Mechs,
		parts:            cfg.Parts,
		sessions:         cfg.Sessions,
		users:            cfg.Users,
		spectators:       cfg.Spectators,
		spectatorBaseURL: cfg.SpectatorBaseURL,
		logger:           logger,
	}, nil
}

// request is one interaction being answered.
type request struct {
	interaction *discordgo.Interaction
	user        *discordgo.User
	displayName string
	key         selection.Key
	responded   bool
}

func newRequest(interaction *discordgo.Interaction) (*request, bool) {
	if interaction == nil {
		return nil, false
	}
	user := interaction.User
	displayName := ""
	if interaction.Member != nil && interaction.Member.User != nil {
		user = interaction.Member.User
		displayName = interaction.Member.Nick
	}
	if user == nil || user.ID == "" {
		return nil, false
	}
	if displayName == "" {
		displayName = user.GlobalName
	}
	return &request{
		interaction: interaction,
		user:        user,
		displayName: displayName,
		key:         selection.Key{ChannelID: interaction.ChannelID, UserID: user.ID},
	}, true
}

// HandleInteraction answers a slash command or a message component. Errors
// and panics never escape; they become replies.
func (b *Bot) HandleInteraction(ctx context.Context, interaction *discordgo.Interaction) {
	req, ok := newRequest(interaction)
	if !ok {
		return
	}
	defer b.recoverInteraction(req)
	b.touch(ctx, req.user, req.displayName)

	var err error
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		err = b.handleCommand(ctx, req, parseCommand(interaction.ApplicationCommandData()))
	case discordgo.InteractionMessageComponent:
		err = b.handleComponent(ctx, req, interaction.MessageComponentData())
	default:
		return
	}
	if err != nil {
		b.replyError(req, err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, req *request, command commandPath) error {
	switch command.name {
	case "pc":
		return b.handleCharacterCommand(ctx, req, command)
	case "ms":
		return b.handleMechCommand(ctx, req, command)
	case "board":
		return b.handleBoardCommand(ctx, req, command)
	case "ult":
		return b.handleUlt(ctx, req, command)
	case "acc":
		return b.handleAccuracy(ctx, req, command)
	case "avoid":
		return b.handleEvasion(req, command)
	case "speed":
		return b.handleSpeed(ctx, req, command)
	case "parts":
		return b.handleParts(ctx, req, command)
	}
	b.logger.Debug("unknown command", zap.String("command", command.name))
	return nil
}

func (b *Bot) handleComponent(ctx context.Context, req *request, data discordgo.MessageComponentInteractionData) error {
	namespace, _, _ := strings.Cut(data.CustomID, ":")
	switch namespace {
	case "pc":
		return b.handleCharacterComponent(ctx, req, data.CustomID)
	case "ms":
		return b.handleMechComponent(ctx, req, data.CustomID)
	case "board":
		return b.handleBoardComponent(ctx, req, data)
	}
	b.logger.Debug("unknown component", zap.String("custom_id", data.CustomID))
	return nil
}

func (b *Bot) touch(ctx context.Context, user *discordgo.User, displayName string) {
	if b.users == nil || user == nil {
		return
	}
	profile := users.Profile{UserID: user.ID, Username: user.Username, DisplayName: displayName}
	if err := b.users.Touch(ctx, profile); err != nil {
		b.logger.Warn("player directory touch failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (b *Bot) recoverInteraction(req *request) {
	recovered := recover()
	if recovered == nil {
		return
	}
	b.logger.Error("interaction handler panicked",
		zap.Any("panic", recovered),
		zap.String("channel_id", req.key.ChannelID),
		zap.String("user_id", req.key.UserID),
		zap.ByteString("stack", debug.Stack()),
	)
	if !req.responded {
		_ = b.replyEphemeral(req, genericFailure)
	}
}

var userFacingErrors = []struct {
	err     error
	message string
}{
	{board.ErrBoardNotFound, "There is no board in this channel yet. Start with `/board create`."},
	{board.ErrParticipantNotFound, "That participant is not on the board."},
	{board.ErrInvalidPosition, "That position is outside the board."},
	{board.ErrInvalidMode, "Mode must be free or battle."},
	{board.ErrEmptyName, "Name must not be empty."},
	{characters.ErrNoCharacterSelected, "No character selected here. Use `/pc select` (see `/pc list`)."},
	{characters.ErrCharacterNotFound, "Character not found. Check `/pc list`."},
	{mechs.ErrNoMechSelected, "No mech selected here. Use `/ms select` (see `/ms list`)."},
	{mechs.ErrMechNotFound, "Mech not found. Check the id with `/ms list`."},
	{mechs.ErrInvalidOperation, "Use add, sub or set."},
}

// describeError returns the reply for err. ok is false for failures the
// player cannot act on.
func describeError(err error) (string, bool) {
	if message, ok := apperr.UserMessage(err); ok {
		return message, true
	}
	for _, candidate := range userFacingErrors {
		if errors.Is(err, candidate.err) {
			return candidate.message, true
		}
	}
	return genericFailure, false
}

func (b *Bot) replyError(req *request, err error) {
	message, expected := describeError(err)
	if !expected {
		b.logger.Error("interaction failed",
			zap.String("channel_id", req.key.ChannelID),
			zap.String("user_id", req.key.UserID),
			zap.Error(err),
		)
	}
	if req.responded {
		return
	}
	if replyErr := b.replyEphemeral(req, message); replyErr != nil {
		b.logger.Warn("error reply failed", zap.Error(replyErr))
	}
}

func (b *Bot) respond(req *request, kind discordgo.InteractionResponseType, data *discordgo.InteractionResponseData) error {
	err := b.transport.Respond(req.interaction, &discordgo.InteractionResponse{Type: kind, Data: data})
	if err != nil {
		return fmt.Errorf("respond to interaction: %w", err)
	}
	req.responded = true
	return nil
}

func (b *Bot) reply(req *request, content string) error {
	return b.respond(req, discordgo.InteractionResponseChannelMessageWithSource, &discordgo.InteractionResponseData{Content: content})
}

func (b *Bot) replyEphemeral(req *request, content string) error {
	return b.respond(req, discordgo.InteractionResponseChannelMessageWithSource, &discordgo.InteractionResponseData{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func (b *Bot) replyEphemeralWithComponents(req *request, content string, components []discordgo.MessageComponent) error {
	return b.respond(req, discordgo.InteractionResponseChannelMessageWithSource, &discordgo.InteractionResponseData{
		Content:    content,
		Components: components,
		Flags:      discordgo.MessageFlagsEphemeral,
	})
}

func (b *Bot) deferUpdate(req *request) error {
	return b.respond(req, discordgo.InteractionResponseDeferredMessageUpdate, nil)
}

// updateMessage rewrites the message the component belongs to.
func (b *Bot) updateMessage(req *request, content string, components []discordgo.MessageComponent) error {
	return b.respond(req, discordgo.InteractionResponseUpdateMessage, &discordgo.InteractionResponseData{
		Content:    content,
		Components: components,
	})
}

// postedMessageID fetches the id of the reply just sent, for later edits.
func (b *Bot) postedMessageID(req *request) (string, bool) {
	message, err := b.transport.ResponseMessage(req.interaction)
	if err != nil || message == nil {
		b.logger.Warn("fetch interaction reply failed", zap.String("channel_id", req.key.ChannelID), zap.Error(err))
		return "", false
	}
	return message.ID, true
}

func fenced(text string) string {
	return "```\n" + text + "\n```"
}
