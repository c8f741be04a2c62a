package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"github.com/MarcoPoloResearchLab/sortie/internal/auth"
	"github.com/MarcoPoloResearchLab/sortie/internal/board"
	"github.com/MarcoPoloResearchLab/sortie/internal/session"
)

const (
	customSelectMember = "board:select-member"
	customSelectPos    = "board:select-pos"
	customSelectArts   = "board:select-arts"
	customSelectTarget = "board:select-target"
	customConfirm      = "board:confirm"
	customPublish      = "board:publish"
	customDelete       = "board:delete"

	targetNoneValue = "none"
	maxArtsNo       = 20
	maxSelectItems  = 25

	colorFree   = 0x2b90d9
	colorBattle = 0xe53935
	colorReveal = 0xffc107
)

func (b *Bot) handleBoardCommand(ctx context.Context, req *request, command commandPath) error {
	channelID := req.key.ChannelID
	if command.sub == "create" {
		return b.createBoard(ctx, req, command)
	}
	if _, err := b.boards.Get(ctx, channelID); err != nil {
		return err
	}

	switch command.sub {
	case "add":
		name, err := requireString(command, "name")
		if err != nil {
			return err
		}
		participant, err := b.boards.AddParticipant(ctx, channelID, name)
		if err != nil {
			return err
		}
		if err := b.replyEphemeral(req, fmt.Sprintf("Added **%s**.", participant.Name)); err != nil {
			return err
		}
	case "remove":
		idOrName, err := requireString(command, "id_or_name")
		if err != nil {
			return err
		}
		removed, err := b.boards.RemoveParticipant(ctx, channelID, idOrName)
		if err != nil {
			return err
		}
		if err := b.replyEphemeral(req, removedText(removed)); err != nil {
			return err
		}
	case "mode":
		raw, err := requireString(command, "value")
		if err != nil {
			return err
		}
		mode, err := board.ParseMode(raw)
		if err != nil {
			return err
		}
		if _, err := b.boards.SetMode(ctx, channelID, mode); err != nil {
			return err
		}
		if err := b.replyEphemeral(req, fmt.Sprintf("Mode set to **%s**.", mode)); err != nil {
			return err
		}
	case "sheet":
		if err := b.replyEphemeral(req, "Board refreshed."); err != nil {
			return err
		}
	case "watch":
		return b.watchBoard(ctx, req)
	default:
		return nil
	}
	return b.upsertBoard(ctx, channelID)
}

func removedText(removed bool) string {
	if removed {
		return "Removed."
	}
	return "Nothing matched to remove."
}

func (b *Bot) createBoard(ctx context.Context, req *request, command commandPath) error {
	size, err := requireInt(command, "size")
	if err != nil {
		return err
	}
	mode := board.ModeFree
	if raw, ok := command.String("mode"); ok {
		if mode, err = board.ParseMode(raw); err != nil {
			return err
		}
	}
	state, err := b.boards.Create(ctx, req.key.ChannelID, req.key.UserID, board.ClampSize(size), mode)
	if err != nil {
		return err
	}
	embed, components := boardMessage(state)
	err = b.respond(req, discordgo.InteractionResponseChannelMessageWithSource, &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		return err
	}
	if messageID, ok := b.postedMessageID(req); ok {
		if _, err := b.boards.SetLastMessageID(ctx, state.ChannelID, messageID); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) watchBoard(ctx context.Context, req *request) error {
	if b.spectators == nil {
		return b.replyEphemeral(req, "Spectator links are disabled on this bot.")
	}
	token, expiresAt, err := b.spectators.IssueSpectatorToken(ctx, req.key.ChannelID)
	if err != nil {
		return err
	}
	link := auth.SpectatorURL(b.spectatorBaseURL, req.key.ChannelID, token)
	return b.replyEphemeral(req, fmt.Sprintf("Read-only board link (valid until <t:%d:f>):\n%s", expiresAt.Unix(), link))
}

// upsertBoard edits the channel's board message in place, or posts a new one
// and remembers it when the old message is gone.
func (b *Bot) upsertBoard(ctx context.Context, channelID string) error {
	state, err := b.boards.Get(ctx, channelID)
	if err != nil {
		return err
	}
	embed, components := boardMessage(state)
	if state.LastMessageID != "" {
		edit := discordgo.NewMessageEdit(channelID, state.LastMessageID).SetEmbeds([]*discordgo.MessageEmbed{embed})
		edit.Components = &components
		_, err := b.transport.Edit(edit)
		if err == nil {
			return nil
		}
		b.logger.Info("board message edit failed, posting a new one",
			zap.String("channel_id", channelID),
			zap.String("message_id", state.LastMessageID),
			zap.Error(err))
	}
	sent, err := b.transport.Send(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		return fmt.Errorf("post board message: %w", err)
	}
	_, err = b.boards.SetLastMessageID(ctx, channelID, sent.ID)
	return err
}

func boardMessage(state board.State) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	view := board.Render(state)
	color := colorFree
	if state.Mode == board.ModeBattle {
		color = colorBattle
	}
	embed := &discordgo.MessageEmbed{Description: fenced(view.Text()), Color: color}
	return embed, boardControls(state)
}

func boardControls(state board.State) []discordgo.MessageComponent {
	members := state.Members
	if len(members) > maxSelectItems {
		members = members[:maxSelectItems]
	}

	memberSelect := discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    customSelectMember,
		Placeholder: "Choose a character",
	}
	targetSelect := discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    customSelectTarget,
		Placeholder: "Choose a target (optional)",
		Options:     []discordgo.SelectMenuOption{{Label: "(no target)", Value: targetNoneValue}},
	}
	for index, member := range members {
		memberSelect.Options = append(memberSelect.Options, discordgo.SelectMenuOption{Label: member.Name, Value: member.ID})
		if index < maxSelectItems-1 {
			targetSelect.Options = append(targetSelect.Options, discordgo.SelectMenuOption{Label: member.Name, Value: member.ID})
		}
	}
	if len(memberSelect.Options) == 0 {
		memberSelect.Options = []discordgo.SelectMenuOption{{Label: "(no participants)", Value: targetNoneValue}}
		memberSelect.Disabled = true
		targetSelect.Disabled = true
	}

	cells := max(board.MinSize, min(board.MaxSize, state.Size))
	posSelect := discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    customSelectPos,
		Placeholder: fmt.Sprintf("Choose a position (1-%d)", state.Size),
	}
	for pos := 1; pos <= cells; pos++ {
		value := strconv.Itoa(pos)
		posSelect.Options = append(posSelect.Options, discordgo.SelectMenuOption{Label: value, Value: value})
	}

	artsSelect := discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    customSelectArts,
		Placeholder: "Choose ARTS.No (0 = no action)",
	}
	for arts := 0; arts <= maxArtsNo; arts++ {
		value := strconv.Itoa(arts)
		artsSelect.Options = append(artsSelect.Options, discordgo.SelectMenuOption{Label: value, Value: value})
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{memberSelect}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{posSelect}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{artsSelect}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{targetSelect}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{CustomID: customConfirm, Label: "Confirm", Style: discordgo.PrimaryButton},
			discordgo.Button{CustomID: customPublish, Label: "Show / refresh", Style: discordgo.SecondaryButton},
			discordgo.Button{CustomID: customDelete, Label: "Remove", Style: discordgo.DangerButton},
		}},
	}
}

func firstValue(data discordgo.MessageComponentInteractionData) (string, bool) {
	if len(data.Values) == 0 {
		return "", false
	}
	return data.Values[0], true
}

func (b *Bot) handleBoardComponent(ctx context.Context, req *request, data discordgo.MessageComponentInteractionData) error {
	channelID := req.key.ChannelID
	state, err := b.boards.Get(ctx, channelID)
	if err != nil {
		return err
	}

	switch data.CustomID {
	case customSelectMember, customSelectPos, customSelectArts, customSelectTarget:
		value, ok := firstValue(data)
		if !ok {
			return b.deferUpdate(req)
		}
		if err := b.rememberSelection(req, data.CustomID, value); err != nil {
			return err
		}
		return b.deferUpdate(req)
	case customConfirm:
		return b.confirm(ctx, req, state)
	case customPublish:
		if err := b.deferUpdate(req); err != nil {
			return err
		}
		return b.upsertBoard(ctx, channelID)
	case customDelete:
		current := b.sessions.Get(req.key)
		if current.MemberID == "" {
			return b.replyEphemeral(req, "Choose the character to remove first.")
		}
		removed, err := b.boards.RemoveParticipant(ctx, channelID, current.MemberID)
		if err != nil {
			return err
		}
		b.sessions.ClearMember(req.key)
		if err := b.replyEphemeral(req, removedText(removed)); err != nil {
			return err
		}
		return b.upsertBoard(ctx, channelID)
	}
	return nil
}

func (b *Bot) rememberSelection(req *request, customID, value string) error {
	var number int
	if customID == customSelectPos || customID == customSelectArts {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return apperr.UserErrorf("%q is not a number.", value)
		}
		number = parsed
	}
	b.sessions.Update(req.key, func(current *session.BoardSelection) {
		switch customID {
		case customSelectMember:
			current.MemberID = value
		case customSelectPos:
			current.Pos = &number
		case customSelectArts:
			current.ArtsNo = &number
		case customSelectTarget:
			if value == targetNoneValue {
				current.Target = board.None[string]()
			} else {
				current.Target = board.Some(value)
			}
		}
	})
	return nil
}

// confirm stages the player's selection. A battle confirm that completes the
// turn posts the reveal before the refreshed board.
func (b *Bot) confirm(ctx context.Context, req *request, state board.State) error {
	current := b.sessions.Get(req.key)
	if !current.Ready() {
		return b.replyEphemeral(req, "Choose a character and a position first.")
	}
	artsNo := 0
	if current.ArtsNo != nil {
		artsNo = *current.ArtsNo
	}
	result, err := b.boards.Confirm(ctx, board.ConfirmRequest{
		ChannelID:     req.key.ChannelID,
		ParticipantID: current.MemberID,
		Pos:           *current.Pos,
		Fields: board.ReservationFields{
			ArtsNo:   board.Some(artsNo),
			TargetID: current.Target,
		},
	})
	if err != nil {
		return err
	}
	b.sessions.Clear(req.key)

	if state.Mode != board.ModeBattle {
		if err := b.deferUpdate(req); err != nil {
			return err
		}
		return b.upsertBoard(ctx, req.key.ChannelID)
	}

	if err := b.replyEphemeral(req, confirmText(state, result.Staged, *current.Pos, artsNo, current.Target)); err != nil {
		return err
	}
	if result.Revealed != nil {
		if err := b.postReveal(req.key.ChannelID, *result.Revealed); err != nil {
			return err
		}
	}
	return b.upsertBoard(ctx, req.key.ChannelID)
}

func confirmText(state board.State, staged board.Participant, pos, artsNo int, target board.Tristate[string]) string {
	targetLabel := "not selected"
	if target.Provided() {
		targetLabel = state.TargetLabel(target)
	}
	text := fmt.Sprintf("Input received: **%s** → position **%d** / ARTS.No **%d** / target **%s**", staged.Name, pos, artsNo, targetLabel)
	if staged.TmpUlt {
		text += " / ULT ON"
	}
	return text
}

func (b *Bot) postReveal(channelID string, reveal board.Reveal) error {
	_, err := b.transport.Send(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Action reveal",
			Description: fenced(reveal.Text()),
			Color:       colorReveal,
		}},
	})
	if err != nil {
		return fmt.Errorf("post reveal: %w", err)
	}
	return nil
}

const (
	ultOn     = "on"
	ultOff    = "off"
	ultToggle = "toggle"
)

func (b *Bot) handleUlt(ctx context.Context, req *request, command commandPath) error {
	name, err := requireString(command, "name")
	if err != nil {
		return err
	}
	mode := ultToggle
	if raw, ok := command.String("mode"); ok && raw != "" {
		mode = raw
	}
	channelID := req.key.ChannelID
	state, err := b.boards.Get(ctx, channelID)
	if err != nil {
		return err
	}
	var participant *board.Participant
	for index := range state.Members {
		if state.Members[index].Name == name {
			participant = &state.Members[index]
			break
		}
	}
	if participant == nil {
		return apperr.WrapUser(board.ErrParticipantNotFound,
			fmt.Sprintf("No participant named %q. Add one with `/board add`.", name))
	}

	switch mode {
	case ultOn, ultOff:
		if _, err := b.boards.SetUlt(ctx, channelID, participant.ID, mode == ultOn); err != nil {
			return err
		}
		return b.replyEphemeral(req, fmt.Sprintf("ULT for **%s** reserved **%s**.", name, onOff(mode == ultOn)))
	case ultToggle:
		_, next, err := b.boards.ToggleUlt(ctx, channelID, participant.ID)
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, fmt.Sprintf("ULT for **%s** switched **%s**.", name, onOff(next)))
	}
	return apperr.NewUserError("Mode must be on, off or toggle.")
}

func onOff(value bool) string {
	if value {
		return "ON"
	}
	return "OFF"
}
