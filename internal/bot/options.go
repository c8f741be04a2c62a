package bot

import (
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
)

// commandPath flattens a slash command invocation into its command name,
// optional subcommand group and subcommand, and leaf options.
type commandPath struct {
	name    string
	group   string
	sub     string
	options map[string]*discordgo.ApplicationCommandInteractionDataOption
}

func parseCommand(data discordgo.ApplicationCommandInteractionData) commandPath {
	path := commandPath{name: data.Name}
	leaves := data.Options
	for len(leaves) == 1 {
		option := leaves[0]
		if option.Type == discordgo.ApplicationCommandOptionSubCommandGroup {
			path.group = option.Name
		} else if option.Type == discordgo.ApplicationCommandOptionSubCommand {
			path.sub = option.Name
		} else {
			break
		}
		leaves = option.Options
	}
	path.options = make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(leaves))
	for _, option := range leaves {
		path.options[option.Name] = option
	}
	return path
}

func (p commandPath) String(name string) (string, bool) {
	option, ok := p.options[name]
	if !ok || option == nil {
		return "", false
	}
	switch value := option.Value.(type) {
	case string:
		return value, true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	case int:
		return strconv.Itoa(value), true
	case int64:
		return strconv.FormatInt(value, 10), true
	}
	return "", false
}

// Int reads an integer option. Gateway payloads decode numbers as float64.
func (p commandPath) Int(name string) (int, bool) {
	value, ok := p.Float(name)
	if !ok {
		return 0, false
	}
	return int(math.Trunc(value)), true
}

func (p commandPath) Float(name string) (float64, bool) {
	option, ok := p.options[name]
	if !ok || option == nil {
		return 0, false
	}
	switch value := option.Value.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return parsed, err == nil
	}
	return 0, false
}

func missingOption(name string) error {
	return apperr.UserErrorf("Option %s is required.", name)
}

func requireString(command commandPath, name string) (string, error) {
	value, ok := command.String(name)
	if !ok {
		return "", missingOption(name)
	}
	return value, nil
}

func requireInt(command commandPath, name string) (int, error) {
	value, ok := command.Int(name)
	if !ok {
		return 0, missingOption(name)
	}
	return value, nil
}
