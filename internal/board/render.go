package board

import (
	"fmt"
	"strings"
)

const viewTitle = "Coordinate board"

// Cell lists the committed occupants of one position.
type Cell struct {
	Pos   int      `json:"pos"`
	Names []string `json:"names"`
}

// View is the read-only projection of a board. It is built from committed
// positions only; staged data contributes nothing but the ready counter.
type View struct {
	ChannelID string `json:"channelId"`
	Size      int    `json:"size"`
	Mode      Mode   `json:"mode"`
	Cells     []Cell `json:"cells"`
	Ready     int    `json:"ready"`
	Total     int    `json:"total"`
	AllReady  bool   `json:"allReady"`
}

// Render projects the board into a View.
func Render(state State) View {
	view := View{
		ChannelID: state.ChannelID,
		Size:      state.Size,
		Mode:      state.Mode,
		Cells:     make([]Cell, 0, max(state.Size, 0)),
		Ready:     state.ReadyCount(),
		Total:     len(state.Members),
		AllReady:  state.Ready(),
	}
	for pos := 1; pos <= state.Size; pos++ {
		cell := Cell{Pos: pos, Names: []string{}}
		for _, member := range state.Members {
			if member.Pos != nil && *member.Pos == pos {
				cell.Names = append(cell.Names, member.Name)
			}
		}
		view.Cells = append(view.Cells, cell)
	}
	return view
}

// Text formats the view as the monospaced board body.
func (v View) Text() string {
	var builder strings.Builder
	builder.WriteString(viewTitle)
	builder.WriteString("\n\n")
	for _, cell := range v.Cells {
		fmt.Fprintf(&builder, "%d: %s\n", cell.Pos, strings.Join(cell.Names, ", "))
	}
	fmt.Fprintf(&builder, "\nsize: %d | mode: %s", v.Size, v.Mode)
	if v.Mode == ModeBattle {
		note := "waiting…"
		if v.AllReady {
			note = "all ready"
		}
		fmt.Fprintf(&builder, "\n(%d/%d) %s", v.Ready, v.Total, note)
	}
	return builder.String()
}
