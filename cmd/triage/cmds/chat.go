package cmds

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-go-golems/triage/pkg/core"
	"github.com/go-go-golems/triage/pkg/events"
	"github.com/go-go-golems/triage/pkg/gateway"
	"github.com/go-go-golems/triage/pkg/ui"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const chatHelp = `Type a message to send it. Commands:
  /new                 start a new session
  /sessions            list sessions
  /switch <id|n>       switch to a session by id or list position
  /history             show the active session
  /clear               remove all messages from the active session
  /clear-all           delete every session
  /rename <title>      rename the active session
  /delete <id>         delete a session
  /model <label>       select the model for the next messages
  /models              list available models
  /checklist           show action items
  /check <n>           toggle action item n
  /help                show this help
  /quit                leave`

func NewChatCommand() *cobra.Command {
	var sessionID string
	var printEvents bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat with the assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings()
			if err != nil {
				return err
			}

			routerOptions := []events.EventRouterOption{
				events.WithVerbose(viper.GetBool("verbose")),
				events.WithDumpWriter(os.Stderr),
			}
			router, err := events.NewEventRouter(routerOptions...)
			if err != nil {
				return err
			}
			defer func() {
				_ = router.Close()
			}()

			pm := events.NewPublisherManager()
			pm.SubscribePublisher(events.TopicConversation, router.Publisher)

			c, _, err := NewCore(s, core.WithPublisher(pm))
			if err != nil {
				return err
			}
			renderer := ui.NewRenderer(os.Stdout)

			router.AddConversationHandler("chat-ui", events.TopicConversation, &eventPrinter{renderer: renderer})
			if printEvents {
				router.AddHandler("dump", events.TopicConversation, router.DumpRawEvents)
			}

			loop := &chatLoop{
				core:     c,
				renderer: renderer,
				reader:   ui.NewLineReader(os.Stdin, os.Stdout),
				opts:     sendOptions(s),
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			eg := errgroup.Group{}
			eg.Go(func() error {
				return router.Run(ctx)
			})
			eg.Go(func() error {
				defer cancel()
				select {
				case <-router.Running():
				case <-ctx.Done():
					return nil
				}
				return loop.Run(ctx, sessionID)
			})

			return eg.Wait()
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session to open on start")
	cmd.Flags().BoolVar(&printEvents, "print-events", false, "Print conversation events to stderr")
	return cmd
}

// eventPrinter shows progress and failures as the core reports them.
type eventPrinter struct {
	renderer *ui.Renderer
}

var _ events.ConversationEventHandler = (*eventPrinter)(nil)

func (p *eventPrinter) HandleTimelineUpdated(ctx context.Context, e *events.EventTimelineUpdated) error {
	log.Trace().Int("messages", len(e.Messages)).Msg("timeline updated")
	return nil
}

func (p *eventPrinter) HandleChecklistUpdated(ctx context.Context, e *events.EventChecklistUpdated) error {
	log.Trace().Int("items", len(e.Items)).Int("progress", e.Progress).Msg("checklist updated")
	return nil
}

func (p *eventPrinter) HandleStatusChanged(ctx context.Context, e *events.EventStatusChanged) error {
	if e.Status == string(core.StatusAwaitingReply) {
		p.renderer.Info("... waiting for the assistant")
	}
	return nil
}

func (p *eventPrinter) HandleSessionsRefreshed(ctx context.Context, e *events.EventSessionsRefreshed) error {
	log.Trace().Int("sessions", len(e.Sessions)).Msg("sessions refreshed")
	return nil
}

func (p *eventPrinter) HandleError(ctx context.Context, e *events.EventError) error {
	msg := e.UserMessage
	if msg == "" {
		msg = e.ErrorString
	}
	p.renderer.Error(msg)
	return nil
}

type chatLoop struct {
	core     *core.Core
	renderer *ui.Renderer
	reader   ui.LineReader
	opts     core.SendOptions
}

func (l *chatLoop) Run(ctx context.Context, sessionID string) error {
	if _, err := l.core.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("could not list sessions")
	}
	if sessionID != "" {
		if err := l.core.SwitchSession(ctx, sessionID); err == nil {
			l.showActive()
		}
	}
	l.renderer.Info("model: %s. /help lists commands.", l.core.Snapshot().SelectedModel)

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := l.reader.ReadLine(l.prompt())
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := l.Handle(ctx, line)
		if err != nil {
			l.reportError(err)
		}
		if quit {
			return nil
		}
	}
}

func (l *chatLoop) prompt() string {
	snap := l.core.Snapshot()
	if !snap.HasSession() {
		return "(new) >"
	}
	return l.core.Registry().TitleOf(snap.ActiveSessionID) + " >"
}

// reportError prints failures the core does not publish itself. Backend failures
// already reached the operator through the error event.
func (l *chatLoop) reportError(err error) {
	if gateway.IsTransport(err) {
		log.Debug().Err(err).Msg("chat command failed")
		return
	}
	l.renderer.Error(err.Error())
}

// Handle runs one line of input. It reports whether the loop should stop.
func (l *chatLoop) Handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, l.send(ctx, line)
	}

	fields := strings.Fields(line)
	command, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch command {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		l.renderer.Info(chatHelp)

	case "/new":
		id, err := l.core.CreateSession(ctx, "")
		if err != nil {
			return false, err
		}
		l.renderer.Info("started session %s", id)

	case "/sessions":
		sessions, err := l.core.Refresh(ctx)
		if err != nil {
			return false, err
		}
		l.renderer.Sessions(sessions, l.core.Snapshot().ActiveSessionID)

	case "/switch":
		id, err := l.resolveSession(rest)
		if err != nil {
			return false, err
		}
		if err := l.core.SwitchSession(ctx, id); err != nil {
			return false, err
		}
		l.showActive()

	case "/history":
		l.showActive()

	case "/clear":
		if !l.core.Snapshot().HasSession() {
			l.renderer.Info("no active session")
			return false, nil
		}
		if err := l.core.ClearSession(ctx); err != nil {
			return false, err
		}
		l.renderer.Info("session cleared")

	case "/clear-all":
		answer, err := l.reader.ReadLine("Delete ALL sessions? This cannot be undone. [y/N]")
		if err != nil {
			return false, err
		}
		if answer != "y" && answer != "Y" {
			l.renderer.Info("aborted")
			return false, nil
		}
		if err := l.core.ClearAllSessions(ctx); err != nil {
			return false, err
		}
		l.renderer.Info("all sessions cleared")

	case "/rename":
		if rest == "" {
			return false, errors.New("usage: /rename <title>")
		}
		if err := l.core.RenameSession(ctx, "", rest); err != nil {
			return false, err
		}
		l.renderer.Info("renamed")

	case "/delete":
		id, err := l.resolveSession(rest)
		if err != nil {
			return false, err
		}
		if err := l.core.DeleteSession(ctx, id); err != nil {
			return false, err
		}
		l.renderer.Info("deleted %s", id)

	case "/model":
		if rest == "" {
			l.renderer.Info("model: %s", l.core.Snapshot().SelectedModel)
			return false, nil
		}
		if err := l.core.SelectModel(rest); err != nil {
			return false, err
		}
		l.renderer.Info("model: %s", l.core.Snapshot().SelectedModel)

	case "/models":
		selected := l.core.Snapshot().SelectedModel
		for _, m := range l.core.Catalog().Models() {
			marker := " "
			if m.Label == selected {
				marker = "*"
			}
			l.renderer.Info("%s %s (%s)", marker, m.Label, m.ID)
		}

	case "/checklist":
		snap := l.core.Snapshot()
		l.renderer.Checklist(snap.Checklist, snap.Progress)

	case "/check":
		snap := l.core.Snapshot()
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 || n > len(snap.Checklist) {
			return false, errors.Errorf("usage: /check <1-%d>", len(snap.Checklist))
		}
		l.core.ToggleChecklistItem(snap.Checklist[n-1].ID)
		snap = l.core.Snapshot()
		l.renderer.Checklist(snap.Checklist, snap.Progress)

	default:
		return false, errors.Errorf("unknown command %s, try /help", command)
	}

	return false, nil
}

func (l *chatLoop) send(ctx context.Context, text string) error {
	if err := l.core.SendMessage(ctx, text, l.opts); err != nil {
		return err
	}
	snap := l.core.Snapshot()
	if last, ok := snap.Timeline.LastAssistant(); ok {
		l.renderer.Message(last)
	}
	if len(snap.Checklist) > 0 {
		l.renderer.Checklist(snap.Checklist, snap.Progress)
	}
	return nil
}

// resolveSession accepts a session id or its 1-based position in the session list.
func (l *chatLoop) resolveSession(arg string) (string, error) {
	if arg == "" {
		return "", errors.New("a session id or number is required")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		sessions := l.core.Registry().Sessions()
		if n >= 1 && n <= len(sessions) {
			return sessions[n-1].SessionID, nil
		}
	}
	return arg, nil
}

func (l *chatLoop) showActive() {
	snap := l.core.Snapshot()
	l.renderer.Timeline(snap.Timeline)
	if len(snap.Checklist) > 0 {
		l.renderer.Checklist(snap.Checklist, snap.Progress)
	}
}
