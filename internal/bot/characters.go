package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MarcoPoloResearchLab/sortie/internal/characters"
	"github.com/MarcoPoloResearchLab/sortie/internal/roster"
)

// Character list controls carry the owner so only they can press them:
// pc:<action>:<ownerID>:<payload>.
const (
	pcSelect    = "sel"
	pcDeleteAsk = "delAsk"
	pcDelete    = "del"
	pcCancel    = "cancel"
	pcPagePrev  = "pagePrev"
	pcPageNext  = "pageNext"
	pcRefresh   = "refresh"

	// Discord allows five rows; one is the paging row.
	maxListRows   = 4
	maxLabelRunes = 80
)

func pcCustomID(action, ownerID, payload string) string {
	return strings.Join([]string{"pc", action, ownerID, payload}, ":")
}

func truncateLabel(label string) string {
	runes := []rune(label)
	if len(runes) <= maxLabelRunes {
		return label
	}
	return string(runes[:maxLabelRunes])
}

func (b *Bot) handleCharacterCommand(ctx context.Context, req *request, command commandPath) error {
	ownerID := req.key.UserID
	switch command.sub {
	case "import":
		text, err := requireString(command, "json")
		if err != nil {
			return err
		}
		character, err := b.characters.Import(ctx, ownerID, text)
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, fmt.Sprintf("Registered **%s** (ID: `%s`).", character.Name, character.ID))
	case "list":
		page, err := b.characters.ListPage(ctx, ownerID, 0)
		if err != nil {
			return err
		}
		if page.Total == 0 {
			return b.replyEphemeral(req, "You have no characters yet. Register one with `/pc import`.")
		}
		content, components := characterList(page, ownerID)
		return b.replyEphemeralWithComponents(req, content, components)
	case "select":
		idOrName, err := requireString(command, "id_or_name")
		if err != nil {
			return err
		}
		character, err := b.characters.Select(ctx, req.key, idOrName)
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, fmt.Sprintf("Selected **%s** in this channel.", character.Name))
	case "whoami":
		character, err := b.characters.Current(ctx, req.key)
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, fmt.Sprintf("Selected character: **%s** (ID: `%s`)", character.Name, character.ID))
	case "delete":
		idOrName, err := requireString(command, "id_or_name")
		if err != nil {
			return err
		}
		removed, err := b.characters.Delete(ctx, ownerID, idOrName)
		if err != nil {
			return err
		}
		if !removed {
			return b.replyEphemeral(req, "Nothing matched to delete.")
		}
		return b.replyEphemeral(req, "Deleted.")
	case "sheet":
		character, err := b.characters.Current(ctx, req.key)
		if err != nil {
			return err
		}
		return b.reply(req, fenced(characters.FormatSheet(character)))
	}
	return nil
}

func characterList(page roster.Page[characters.Character], ownerID string) (string, []discordgo.MessageComponent) {
	lines := []string{
		fmt.Sprintf("Your characters (%d)", page.Total),
		fmt.Sprintf("Page %d/%d", page.Index+1, page.Pages),
		"",
	}
	for offset, character := range page.Items {
		lines = append(lines, fmt.Sprintf("%d. **%s**  (ID: `%s`)", page.Offset+offset+1, character.Name, character.ID))
	}

	rows := make([]discordgo.MessageComponent, 0, maxListRows+1)
	for _, character := range page.Items {
		if len(rows) == maxListRows {
			break
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				CustomID: pcCustomID(pcSelect, ownerID, character.ID),
				Label:    truncateLabel("Select: " + character.Name),
				Style:    discordgo.PrimaryButton,
			},
			discordgo.Button{
				CustomID: pcCustomID(pcDeleteAsk, ownerID, character.ID),
				Label:    "Delete",
				Style:    discordgo.DangerButton,
			},
		}})
	}
	rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			CustomID: pcCustomID(pcPagePrev, ownerID, strconv.Itoa(max(0, page.Index-1))),
			Label:    "◀ Prev",
			Style:    discordgo.SecondaryButton,
			Disabled: !page.HasPrev(),
		},
		discordgo.Button{
			CustomID: pcCustomID(pcPageNext, ownerID, strconv.Itoa(min(page.Pages-1, page.Index+1))),
			Label:    "Next ▶",
			Style:    discordgo.SecondaryButton,
			Disabled: !page.HasNext(),
		},
		discordgo.Button{
			CustomID: pcCustomID(pcRefresh, ownerID, strconv.Itoa(page.Index)),
			Label:    "Refresh",
			Style:    discordgo.SecondaryButton,
		},
	}})
	return strings.Join(lines, "\n"), rows
}

func (b *Bot) handleCharacterComponent(ctx context.Context, req *request, customID string) error {
	fields := strings.SplitN(customID, ":", 4)
	if len(fields) != 4 {
		return nil
	}
	action, ownerID, payload := fields[1], fields[2], fields[3]
	if ownerID != req.key.UserID {
		return b.replyEphemeral(req, "This is not your list. Run `/pc list` yourself.")
	}

	switch action {
	case pcSelect:
		character, err := b.characters.Select(ctx, req.key, payload)
		if err != nil {
			return err
		}
		return b.replyEphemeral(req, fmt.Sprintf("Selected **%s** in this channel.", character.Name))
	case pcDeleteAsk:
		return b.replyEphemeralWithComponents(req, "Delete this character? This cannot be undone.", []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{CustomID: pcCustomID(pcDelete, ownerID, payload), Label: "Delete", Style: discordgo.DangerButton},
				discordgo.Button{CustomID: pcCustomID(pcCancel, ownerID, payload), Label: "Cancel", Style: discordgo.SecondaryButton},
			}},
		})
	case pcDelete:
		removed, err := b.characters.Delete(ctx, ownerID, payload)
		if err != nil {
			return err
		}
		if !removed {
			return b.updateMessage(req, "Nothing was deleted.", []discordgo.MessageComponent{})
		}
		return b.updateMessage(req, "Deleted.", []discordgo.MessageComponent{})
	case pcCancel:
		return b.updateMessage(req, "Cancelled.", []discordgo.MessageComponent{})
	case pcPagePrev, pcPageNext, pcRefresh:
		index, err := strconv.Atoi(payload)
		if err != nil {
			index = 0
		}
		page, err := b.characters.ListPage(ctx, ownerID, index)
		if err != nil {
			return err
		}
		content, components := characterList(page, ownerID)
		return b.updateMessage(req, content, components)
	}
	return nil
}
