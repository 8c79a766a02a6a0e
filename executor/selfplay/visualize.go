// visualize.go - Console visualization for self-play games.
//
// PrintBoard writes the board and the player to move. PrintEncodedLayers
// dumps the network input planes for the same position.
package selfplay

import (
	"fmt"
	"io"
	"strings"

	"github.com/brensch/othello0/executor/convert"
	"github.com/brensch/othello0/game"
)

func PrintBoard(w io.Writer, state *game.GameState) {
	fmt.Fprintln(w, state.String())
	fmt.Fprintf(w, "Current player: %s\n", state.Current)
}

func PrintEncodedLayers(w io.Writer, state *game.GameState) {
	dataPtr := convert.StateToFloat32(state)
	data := *dataPtr
	defer convert.PutFloatBuffer(dataPtr)

	channelName := func(c int) string {
		switch c {
		case 0:
			return "white"
		case 1:
			return "black"
		case 2:
			return "black_to_move"
		default:
			return "unknown"
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n--- Encoded input layers (C,H,W) ply %d ---\n", state.Ply)
	for c := 0; c < convert.Channels; c++ {
		fmt.Fprintf(&sb, "Layer %d (%s):\n", c, channelName(c))
		base := c * convert.Height * convert.Width
		for y := 0; y < convert.Height; y++ {
			for x := 0; x < convert.Width; x++ {
				if data[base+y*convert.Width+x] == 0 {
					sb.WriteString(". ")
				} else {
					sb.WriteString("1 ")
				}
			}
			sb.WriteString("\n")
		}
	}
	io.WriteString(w, sb.String())
}
