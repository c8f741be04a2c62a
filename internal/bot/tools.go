package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/sortie/internal/formula"
	"github.com/MarcoPoloResearchLab/sortie/internal/mechs"
	"github.com/MarcoPoloResearchLab/sortie/internal/parts"
)

// handleAccuracy answers /acc. Without a selected mech the sync rank is 0.
func (b *Bot) handleAccuracy(ctx context.Context, req *request, command commandPath) error {
	level, err := requireInt(command, "level")
	if err != nil {
		return err
	}
	baseRate, ok := command.Float("base_rate")
	if !ok {
		return missingOption("base_rate")
	}
	weaponRange, err := requireInt(command, "range")
	if err != nil {
		return err
	}
	distance, err := requireInt(command, "dist")
	if err != nil {
		return err
	}

	syncLevel := 0
	mech, err := b.mechs.Current(ctx, req.key)
	switch {
	case err == nil:
		syncLevel = mech.SyncLevel
	case !errors.Is(err, mechs.ErrNoMechSelected):
		return err
	}

	result := formula.ComputeAccuracy(formula.AccuracyInput{
		Level:     level,
		BaseRate:  baseRate,
		Range:     weaponRange,
		Distance:  distance,
		SyncLevel: syncLevel,
	})
	return b.reply(req, result.Text())
}

func (b *Bot) handleEvasion(req *request, command commandPath) error {
	mobility, ok := command.Float("mobility")
	if !ok {
		return missingOption("mobility")
	}
	accuracy, ok := command.Float("accuracy")
	if !ok {
		return missingOption("accuracy")
	}
	level, _ := command.Int("level")
	result := formula.ComputeEvasion(formula.EvasionInput{Mobility: mobility, Accuracy: accuracy, Level: level})
	return b.reply(req, result.Text())
}

func (b *Bot) handleSpeed(ctx context.Context, req *request, command commandPath) error {
	level, err := requireInt(command, "level")
	if err != nil {
		return err
	}
	mech, err := b.mechs.Current(ctx, req.key)
	if err != nil {
		return err
	}
	return b.replyEphemeral(req, formula.ComputeSpeed(level, mech).Text())
}

func (b *Bot) handleParts(ctx context.Context, req *request, command commandPath) error {
	switch command.sub {
	case "show":
		status, err := b.parts.Show(ctx, req.key)
		if err != nil {
			return err
		}
		return b.reply(req, status.Text())
	case "break":
		number, err := requireInt(command, "number")
		if err != nil {
			return err
		}
		status, err := b.parts.Destroy(ctx, req.key, number)
		if err != nil {
			return err
		}
		return b.reply(req, fmt.Sprintf("Recorded part **%d** (%s) of **%s** as destroyed.\n%s",
			number, parts.Name(number), status.Mech.Name, status.Text()))
	case "random":
		count, err := requireInt(command, "count")
		if err != nil {
			return err
		}
		status, err := b.parts.DestroyRandom(ctx, req.key, count)
		if err != nil {
			return err
		}
		return b.reply(req, fmt.Sprintf("Destroyed **%d** random part(s) of **%s**. Hit: %s\n%s",
			count, status.Mech.Name, hitList(status.Hit), status.Text()))
	case "reset":
		status, err := b.parts.Reset(ctx, req.key)
		if err != nil {
			return err
		}
		return b.reply(req, fmt.Sprintf("Cleared the destroyed parts of **%s**.\n%s", status.Mech.Name, status.Text()))
	}
	return nil
}

func hitList(hit []int) string {
	if len(hit) == 0 {
		return "none"
	}
	labels := make([]string, 0, len(hit))
	for _, part := range hit {
		labels = append(labels, fmt.Sprint(part))
	}
	return strings.Join(labels, ", ")
}
