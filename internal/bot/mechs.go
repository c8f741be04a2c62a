package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/sortie/internal/mechs"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
)

const (
	msSelectPrefix = "ms:select:"
	msDeletePrefix = "ms:delete:"

	colorMechList = 0x00bcd4
)

func (b *Bot) handleMechCommand(ctx context.Context, req *request, command commandPath) error {
	switch command.group {
	case "armor", "sync":
		return b.adjustMech(ctx, req, command)
	}

	ownerID := req.key.UserID
	switch command.sub {
	case "import":
		text, err := requireString(command, "json")
		if err != nil {
			return err
		}
		mech, err := b.mechs.Import(ctx, ownerID, text)
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, fmt.Sprintf("Registered mech **%s** (ID: `%s`).", mech.Name, mech.ID))
	case "list":
		list, err := b.mechs.List(ctx, ownerID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return b.replyEphemeral(req, "You have no mechs yet. Register one with `/ms import`.")
		}
		embed, components := mechList(list)
		return b.respond(req, discordgo.InteractionResponseChannelMessageWithSource, &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		})
	case "select":
		idOrName, err := requireString(command, "id_or_name")
		if err != nil {
			return err
		}
		mech, err := b.mechs.Select(ctx, req.key, idOrName)
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, fmt.Sprintf("Selected mech: **%s** (ID: `%s`)", mech.Name, mech.ID))
	case "delete":
		idOrName, err := requireString(command, "id_or_name")
		if err != nil {
			return err
		}
		removed, err := b.mechs.Delete(ctx, ownerID, idOrName)
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, removedText(removed))
	case "sheet":
		mech, err := b.mechs.Current(ctx, req.key)
		if err != nil {
			return err
		}
		if err := b.reply(req, mechs.FormatSheet(mech)); err != nil {
			return err
		}
		if messageID, ok := b.postedMessageID(req); ok {
			return b.mechs.RememberSheet(ctx, req.key, messageID)
		}
		return nil
	case "whoami":
		mech, err := b.mechs.Current(ctx, req.key)
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, fmt.Sprintf("Selected mech: **%s** (ID: `%s`)", mech.Name, mech.ID))
	}
	return nil
}

func mechList(list []mechs.Mech) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	lines := make([]string, 0, len(list))
	rows := make([]discordgo.MessageComponent, 0, maxListRows+1)
	for index, mech := range list {
		lines = append(lines, fmt.Sprintf("%d. **%s** (Type %s / TLv %d)  ID: `%s`", index+1, mech.Name, mech.Type, mech.TLv, mech.ID))
		if len(rows) == maxListRows+1 {
			continue
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{CustomID: msSelectPrefix + mech.ID, Label: truncateLabel("Select: " + mech.Name), Style: discordgo.PrimaryButton},
			discordgo.Button{CustomID: msDeletePrefix + mech.ID, Label: "Delete", Style: discordgo.DangerButton},
		}})
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Your mechs",
		Description: strings.Join(lines, "\n"),
		Color:       colorMechList,
	}
	return embed, rows
}

func (b *Bot) handleMechComponent(ctx context.Context, req *request, customID string) error {
	switch {
	case strings.HasPrefix(customID, msSelectPrefix):
		mech, err := b.mechs.Select(ctx, req.key, strings.TrimPrefix(customID, msSelectPrefix))
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, fmt.Sprintf("Selected mech: **%s**", mech.Name))
	case strings.HasPrefix(customID, msDeletePrefix):
		removed, err := b.mechs.Delete(ctx, req.key.UserID, strings.TrimPrefix(customID, msDeletePrefix))
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, removedText(removed))
	}
	return nil
}

// adjustMech handles /ms armor and /ms sync. An armor change also refreshes
// the player's posted sheet.
func (b *Bot) adjustMech(ctx context.Context, req *request, command commandPath) error {
	op, err := mechs.ParseOperation(command.sub)
	if err != nil {
		return err
	}
	value, err := requireInt(command, "value")
	if err != nil {
		return err
	}

	if command.group == "sync" {
		change, err := b.mechs.MutateSync(ctx, req.key, op, value)
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, fmt.Sprintf("Sync updated: **%s → %s**",
			mechs.FormatSync(change.Before.SyncLevel), mechs.FormatSync(change.After.SyncLevel)))
	}

	change, err := b.mechs.MutateArmor(ctx, req.key, op, value)
	if err != nil {
		return err
	}
	b.refreshSheet(ctx, req.key, change.After)
	return b.replyEphemeral(req, fmt.Sprintf("Armor updated: **%d → %d** (max %d)",
		change.Before.ArmorCurrent, change.After.ArmorCurrent, change.After.ArmorMax))
}

func (b *Bot) refreshSheet(ctx context.Context, key selection.Key, mech mechs.Mech) {
	messageID, ok, err := b.mechs.SheetMessage(ctx, key)
	if err != nil || !ok {
		return
	}
	edit := discordgo.NewMessageEdit(key.ChannelID, messageID).SetContent(mechs.FormatSheet(mech))
	if _, err := b.transport.Edit(edit); err != nil {
		b.logger.Info("mech sheet edit failed",
			zap.String("channel_id", key.ChannelID),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}
