package bot

import (
	"github.com/bwmarrin/discordgo"
)

// Transport is the part of the Discord REST API the handlers talk to.
type Transport interface {
	Respond(interaction *discordgo.Interaction, response *discordgo.InteractionResponse) error
	ResponseMessage(interaction *discordgo.Interaction) (*discordgo.Message, error)
	Send(channelID string, message *discordgo.MessageSend) (*discordgo.Message, error)
	Edit(edit *discordgo.MessageEdit) (*discordgo.Message, error)
}

// SessionTransport sends through a gateway session.
type SessionTransport struct {
	session *discordgo.Session
}

func NewSessionTransport(session *discordgo.Session) *SessionTransport {
	return &SessionTransport{session: session}
}

func (t *SessionTransport) Respond(interaction *discordgo.Interaction, response *discordgo.InteractionResponse) error {
	return t.session.InteractionRespond(interaction, response)
}

func (t *SessionTransport) ResponseMessage(interaction *discordgo.Interaction) (*discordgo.Message, error) {
	return t.session.InteractionResponse(interaction)
}

func (t *SessionTransport) Send(channelID string, message *discordgo.MessageSend) (*discordgo.Message, error) {
	return t.session.ChannelMessageSendComplex(channelID, message)
}

func (t *SessionTransport) Edit(edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	return t.session.ChannelMessageEditComplex(edit)
}
