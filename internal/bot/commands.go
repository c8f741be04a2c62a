package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MarcoPoloResearchLab/sortie/internal/board"
	"github.com/MarcoPoloResearchLab/sortie/internal/parts"
)

// RegisterTarget selects where slash commands are synchronized.
type RegisterTarget string

const (
	RegisterGuild       RegisterTarget = "guild"
	RegisterGlobal      RegisterTarget = "global"
	RegisterClearGuild  RegisterTarget = "clear:guild"
	RegisterClearGlobal RegisterTarget = "clear:global"
)

var (
	ErrUnknownRegisterTarget = errors.New("unknown register target")
	ErrMissingAppID          = errors.New("discord application id is required")
	ErrMissingGuildID        = errors.New("discord guild id is required for guild registration")
)

// ParseRegisterTarget accepts guild, global, clear:guild and clear:global.
// An empty value means guild.
func ParseRegisterTarget(raw string) (RegisterTarget, error) {
	switch target := RegisterTarget(strings.ToLower(strings.TrimSpace(raw))); target {
	case "":
		return RegisterGuild, nil
	case RegisterGuild, RegisterGlobal, RegisterClearGuild, RegisterClearGlobal:
		return target, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegisterTarget, raw)
}

// CommandRegistrar overwrites an application's command set. *discordgo.Session
// satisfies it.
type CommandRegistrar interface {
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// Register replaces the command set of the guild or of the whole
// application. The clear targets install an empty set. It returns how many
// commands are now registered.
func Register(registrar CommandRegistrar, appID, guildID string, target RegisterTarget) (int, error) {
	if strings.TrimSpace(appID) == "" {
		return 0, ErrMissingAppID
	}
	commands := Commands()
	scope := guildID
	switch target {
	case RegisterGuild:
	case RegisterClearGuild:
		commands = []*discordgo.ApplicationCommand{}
	case RegisterGlobal:
		scope = ""
	case RegisterClearGlobal:
		scope = ""
		commands = []*discordgo.ApplicationCommand{}
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRegisterTarget, target)
	}
	if (target == RegisterGuild || target == RegisterClearGuild) && strings.TrimSpace(guildID) == "" {
		return 0, ErrMissingGuildID
	}
	registered, err := registrar.ApplicationCommandBulkOverwrite(appID, scope, commands)
	if err != nil {
		return 0, fmt.Errorf("register %s commands: %w", target, err)
	}
	return len(registered), nil
}

func floatPtr(value float64) *float64 {
	return &value
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func intOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func boundedIntOption(name, description string, low, high int) *discordgo.ApplicationCommandOption {
	option := intOption(name, description, true)
	option.MinValue = floatPtr(float64(low))
	option.MaxValue = float64(high)
	return option
}

func numberOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionNumber,
		Name:        name,
		Description: description,
		Required:    true,
	}
}

func choices(values ...string) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(values))
	for _, value := range values {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: value, Value: value})
	}
	return out
}

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func adjustmentGroup(name, description, unit string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
		Name:        name,
		Description: description,
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("add", "Add to the current "+unit, intOption("value", "Amount to add", true)),
			subcommand("sub", "Subtract from the current "+unit, intOption("value", "Amount to subtract", true)),
			subcommand("set", "Set the current "+unit, intOption("value", "New value", true)),
		},
	}
}

// Commands lists every slash command the bot answers.
func Commands() []*discordgo.ApplicationCommand {
	modeOption := stringOption("mode", "free or battle", false)
	modeOption.Choices = choices(string(board.ModeFree), string(board.ModeBattle))
	modeValue := stringOption("value", "free or battle", true)
	modeValue.Choices = choices(string(board.ModeFree), string(board.ModeBattle))
	ultMode := stringOption("mode", "on, off or toggle (default toggle)", false)
	ultMode.Choices = choices(ultOn, ultOff, ultToggle)
	level := intOption("level", "Skill level", false)

	return []*discordgo.ApplicationCommand{
		{
			Name:        "pc",
			Description: "Manage your characters",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("import", "Register a character from JSON", stringOption("json", "Character JSON", true)),
				subcommand("list", "List your characters"),
				subcommand("select", "Select a character in this channel", stringOption("id_or_name", "Character id or name", true)),
				subcommand("whoami", "Show the character selected in this channel"),
				subcommand("delete", "Delete one of your characters", stringOption("id_or_name", "Character id or name", true)),
				subcommand("sheet", "Post the selected character's sheet"),
			},
		},
		{
			Name:        "ms",
			Description: "Manage your mechs",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("import", "Register a mech from JSON", stringOption("json", "Mech JSON", true)),
				subcommand("list", "List your mechs"),
				subcommand("select", "Select a mech in this channel", stringOption("id_or_name", "Mech id or name", true)),
				subcommand("delete", "Delete one of your mechs", stringOption("id_or_name", "Mech id or name", true)),
				subcommand("sheet", "Post the selected mech's sheet (kept up to date on armor changes)"),
				subcommand("whoami", "Show the mech selected in this channel"),
				adjustmentGroup("armor", "Change the current armor", "armor"),
				adjustmentGroup("sync", "Change the sync rank (-6..+6)", "sync rank"),
			},
		},
		{
			Name:        "board",
			Description: "Create and drive the position board",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("create", "Create the board of this channel",
					boundedIntOption("size", "Number of cells (1-25)", board.MinSize, board.MaxSize), modeOption),
				subcommand("add", "Add a participant", stringOption("name", "Participant name", true)),
				subcommand("remove", "Remove participants by id or name", stringOption("id_or_name", "Participant id or name", true)),
				subcommand("mode", "Switch the board mode", modeValue),
				subcommand("sheet", "Show or refresh the board"),
				subcommand("watch", "Get a read-only spectator link"),
			},
		},
		{
			Name:        "ult",
			Description: "Privately reserve a participant's ULT",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("name", "Participant name (exact)", true),
				ultMode,
			},
		},
		{
			Name:        "acc",
			Description: "Compute the accuracy index",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("level", "Skill level", true),
				numberOption("base_rate", "Base hit rate in percent"),
				intOption("range", "Weapon range", true),
				intOption("dist", "Distance to the target", true),
			},
		},
		{
			Name:        "avoid",
			Description: "Compute the evasion and hit index",
			Options: []*discordgo.ApplicationCommandOption{
				numberOption("mobility", "Mobility"),
				numberOption("accuracy", "Attacker accuracy index"),
				level,
			},
		},
		{
			Name:        "speed",
			Description: "Compute the speed index of the selected mech",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("level", "Skill level", true),
			},
		},
		{
			Name:        "parts",
			Description: "Track destroyed parts of the selected mech",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("show", "Show the part status"),
				subcommand("break", "Destroy one part",
					boundedIntOption("number", "Part number (1-8)", parts.FirstPart, parts.LastPart)),
				subcommand("random", "Destroy random intact parts",
					boundedIntOption("count", "How many parts (1-8)", 1, parts.LastPart)),
				subcommand("reset", "Clear the destroyed parts"),
			},
		},
	}
}
