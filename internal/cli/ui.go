package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/FundManagerGo/consts"
	"github.com/dyike/FundManagerGo/internal/stream"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7C3AED")).
			Padding(0, 2)

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

const toolResultPreviewLen = 160

// StreamView renders pipeline events to the terminal as they arrive:
// a banner per stage, the agent's thinking text as a live stream, and
// one line per tool invocation result.
type StreamView struct {
	out       io.Writer
	streaming bool
}

func NewStreamView(out io.Writer) *StreamView {
	return &StreamView{out: out}
}

// Handle renders one pipeline event.
func (v *StreamView) Handle(ev *stream.Event) {
	switch ev.Type {
	case stream.EventNodeStart:
		v.breakStream()
		fmt.Fprintln(v.out)
		fmt.Fprintln(v.out, bannerStyle.Render(fmt.Sprintf("🧠 %s", consts.StageDisplayName(ev.AgentName))))

	case stream.EventTextChunk:
		fmt.Fprint(v.out, ev.Data)
		v.streaming = true

	case stream.EventToolUse:
		v.breakStream()
		fmt.Fprintln(v.out, toolStyle.Render(fmt.Sprintf("→ %s running...", ev.ToolName)))

	case stream.EventToolResult:
		v.breakStream()
		preview := truncate(strings.TrimSpace(ev.FirstContentText()), toolResultPreviewLen)
		fmt.Fprintln(v.out, toolStyle.Render(fmt.Sprintf("✓ %s: %s", ev.ToolName, preview)))

	case stream.EventNodeComplete:
		v.breakStream()
		fmt.Fprintln(v.out, doneStyle.Render(fmt.Sprintf("✔ %s completed", consts.StageDisplayName(ev.AgentName))))

	case stream.EventError:
		v.breakStream()
		fmt.Fprintln(v.out, errorStyle.Render(fmt.Sprintf("✗ %s failed: %s", consts.StageDisplayName(ev.AgentName), ev.Error)))
	}
}

// breakStream terminates an open text-chunk line before printing a block.
func (v *StreamView) breakStream() {
	if v.streaming {
		fmt.Fprintln(v.out)
		v.streaming = false
	}
}

// truncate shortens s to at most n runes. Truncating on a rune boundary
// keeps multibyte text (Korean labels, in particular) intact.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
