package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/triage/pkg/checklist"
	"github.com/go-go-golems/triage/pkg/conversation"
	"github.com/go-go-golems/triage/pkg/session"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

// Renderer prints conversation state for an operator. Assistant replies are styled
// as markdown when writing to a terminal.
type Renderer struct {
	out      io.Writer
	markdown *glamour.TermRenderer
}

type RendererOption func(*Renderer)

// WithMarkdown forces markdown styling on or off.
func WithMarkdown(enabled bool) RendererOption {
	return func(r *Renderer) {
		if !enabled {
			r.markdown = nil
			return
		}
		if r.markdown == nil {
			r.markdown = newMarkdownRenderer()
		}
	}
}

func NewRenderer(out io.Writer, options ...RendererOption) *Renderer {
	ret := &Renderer{out: out}
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		ret.markdown = newMarkdownRenderer()
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func newMarkdownRenderer() *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		log.Warn().Err(err).Msg("could not create markdown renderer, using plain text")
		return nil
	}
	return r
}

func (r *Renderer) Message(m conversation.Message) {
	header := "[" + string(m.Role) + "]"
	if m.Timestamp != "" {
		header += " " + m.Timestamp
	}
	if m.ResponseTime != nil {
		header += fmt.Sprintf(" (%.2fs)", *m.ResponseTime)
	}
	_, _ = fmt.Fprintln(r.out, header)

	content := m.Content
	if m.IsAssistant() && r.markdown != nil {
		styled, err := r.markdown.Render(content)
		if err == nil {
			_, _ = fmt.Fprint(r.out, styled)
			return
		}
		log.Debug().Err(err).Msg("markdown rendering failed")
	}
	_, _ = fmt.Fprintln(r.out, strings.TrimRight(content, "\n"))
	_, _ = fmt.Fprintln(r.out)
}

// Timeline prints every message after the system message.
func (r *Renderer) Timeline(tl conversation.Timeline) {
	msgs := tl.Conversation()
	if len(msgs) == 0 {
		_, _ = fmt.Fprintln(r.out, "(no messages yet)")
		return
	}
	for _, m := range msgs {
		r.Message(m)
	}
}

func (r *Renderer) Checklist(items []checklist.Item, progress int) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(r.out, "(no action items)")
		return
	}
	_, _ = fmt.Fprintf(r.out, "Action items (%d%% done):\n", progress)
	for i, item := range items {
		mark := "□"
		if item.Completed {
			mark = "■"
		}
		_, _ = fmt.Fprintf(r.out, "  %d. %s %s\n", i+1, mark, item.Text)
	}
}

// Sessions prints the session list as a table, marking activeID.
func (r *Renderer) Sessions(sessions []session.Session, activeID string) {
	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(r.out, "(no sessions)")
		return
	}

	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"", "Session", "Preview", "Model", "Exchanges", "Last updated"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, s := range sessions {
		marker := ""
		if s.SessionID == activeID {
			marker = "*"
		}
		table.Append([]string{
			marker,
			s.SessionID,
			s.ShortPreview(40),
			s.Model,
			strconv.Itoa(s.ExchangeCount),
			s.LastUpdated,
		})
	}
	table.Render()
}

func (r *Renderer) Info(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintf(r.out, "error: %s\n", msg)
}
