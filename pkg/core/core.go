package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/triage/pkg/checklist"
	"github.com/go-go-golems/triage/pkg/conversation"
	"github.com/go-go-golems/triage/pkg/events"
	"github.com/go-go-golems/triage/pkg/gateway"
	"github.com/go-go-golems/triage/pkg/history"
	"github.com/go-go-golems/triage/pkg/models"
	"github.com/go-go-golems/triage/pkg/session"
	"github.com/go-go-golems/triage/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	StatusIdle          Status = "idle"
	StatusAwaitingReply Status = "awaiting-reply"
)

// SendOptions parameterize one turn. Empty fields fall back to the selected model and
// the default reply length.
type SendOptions struct {
	Model     string
	MaxTokens int
	Streaming bool
}

// Snapshot is a copy of the core's state, safe to hold onto.
type Snapshot struct {
	Timeline        conversation.Timeline
	Checklist       []checklist.Item
	Progress        int
	ActiveSessionID string
	Status          Status
	LastError       error
	SelectedModel   string
	Sessions        []session.Session
}

func (s Snapshot) HasSession() bool {
	return s.ActiveSessionID != ""
}

// Core owns the active conversation: its timeline, checklist, session identity and
// reply status. Its methods are the only mutators of that state.
//
// Mutating operations are serialized. While a send is waiting on the backend the
// serialization lock is released, so Snapshot shows the optimistic user message and
// other mutators return ErrAwaitingReply instead of queueing.
type Core struct {
	gateway   gateway.Gateway
	registry  *session.Registry
	catalog   *models.Catalog
	extractor *checklist.Extractor
	publisher *events.PublisherManager
	now       func() time.Time
	system    conversation.Message

	opMu sync.Mutex

	mu              sync.RWMutex
	timeline        conversation.Timeline
	checklist       *checklist.Checklist
	activeSessionID string
	status          Status
	lastError       error
	selectedModel   string
}

type Option func(*Core)

func WithCatalog(catalog *models.Catalog) Option {
	return func(c *Core) {
		c.catalog = catalog
	}
}

func WithExtractor(extractor *checklist.Extractor) Option {
	return func(c *Core) {
		c.extractor = extractor
	}
}

// WithPublisher makes the core publish an event after every state change.
// Handlers receiving those events may call Snapshot but not the mutators.
func WithPublisher(publisher *events.PublisherManager) Option {
	return func(c *Core) {
		c.publisher = publisher
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		c.now = now
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(c *Core) {
		c.system = conversation.NewSystemMessage(prompt)
	}
}

func New(gw gateway.Gateway, options ...Option) *Core {
	ret := &Core{
		gateway:   gw,
		catalog:   models.Default(),
		extractor: checklist.NewExtractor(),
		now:       time.Now,
		system:    conversation.NewSystemMessage(conversation.DefaultSystemPrompt),
		checklist: checklist.New(),
		status:    StatusIdle,
	}
	for _, option := range options {
		option(ret)
	}
	ret.registry = session.NewRegistry(gw, ret.catalog)
	ret.timeline = conversation.NewTimeline(ret.system)
	ret.selectedModel = ret.catalog.DefaultLabel()
	return ret
}

func (c *Core) Registry() *session.Registry {
	return c.registry
}

func (c *Core) Catalog() *models.Catalog {
	return c.catalog
}

func (c *Core) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Timeline:        c.timeline.Clone(),
		Checklist:       c.checklist.Items(),
		Progress:        c.checklist.Progress(),
		ActiveSessionID: c.activeSessionID,
		Status:          c.status,
		LastError:       c.lastError,
		SelectedModel:   c.selectedModel,
		Sessions:        c.registry.Sessions(),
	}
}

// Refresh reloads the session list. On failure the previous list is kept.
func (c *Core) Refresh(ctx context.Context) ([]session.Session, error) {
	sessions, err := c.registry.Refresh(ctx)
	if err != nil {
		c.publishError(err)
		return sessions, err
	}
	c.publish(events.NewSessionsRefreshedEvent(c.metadata(), sessions))
	return sessions, nil
}

// CreateSession allocates an empty session on the backend and makes it active.
// An empty modelID uses the selected model.
func (c *Core) CreateSession(ctx context.Context, modelID string) (string, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.checkIdle(); err != nil {
		return "", err
	}

	if modelID == "" {
		modelID = c.selectedModelID()
	}

	resp, err := c.gateway.CreateSession(ctx, modelID)
	if err != nil {
		c.recordError(errors.Wrap(err, "could not create session"))
		return "", err
	}

	log.Info().Str("session_id", resp.SessionID).Str("model", modelID).Msg("session created")

	c.mu.Lock()
	c.install(resp.SessionID, conversation.NewTimeline(c.system))
	c.selectModelID(resp.Model)
	c.lastError = nil
	c.mu.Unlock()

	c.publishTimeline()
	_, _ = c.Refresh(ctx)
	return resp.SessionID, nil
}

// SwitchSession loads sessionID's history from the backend and makes it the active
// session. On failure the current state is kept.
func (c *Core) SwitchSession(ctx context.Context, sessionID string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.checkIdle(); err != nil {
		return err
	}
	c.warnIfUnknown(sessionID, "switch")

	resp, err := c.gateway.GetSessionHistory(ctx, sessionID)
	if err != nil {
		c.recordError(errors.Wrapf(err, "could not load session %s", sessionID))
		return err
	}

	timeline := history.Normalize(c.system, resp.ConversationHistory)

	c.mu.Lock()
	c.install(sessionID, timeline)
	c.selectModelID(resp.Model)
	c.lastError = nil
	c.mu.Unlock()

	log.Debug().
		Str("session_id", sessionID).
		Str("form", resp.ConversationHistory.Form.String()).
		Int("messages", len(timeline)-1).
		Msg("session switched")

	c.publishTimeline()
	return nil
}

// SendMessage sends text as the next user turn of the active session, or of a new
// session when none is active.
//
// The user message is shown immediately. Once the backend replies, the whole timeline
// is replaced by the backend's history. If the send fails, the user message stays and
// the error is recorded.
func (c *Core) SendMessage(ctx context.Context, text string, opts SendOptions) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	c.opMu.Lock()
	c.mu.Lock()
	if c.status == StatusAwaitingReply {
		c.mu.Unlock()
		c.opMu.Unlock()
		return ErrAwaitingReply
	}
	window := c.timeline.Window(settings.ContextWindow)
	c.timeline = c.timeline.Append(conversation.NewUserMessage(text, c.now()))
	sessionID := c.activeSessionID
	c.status = StatusAwaitingReply
	c.mu.Unlock()
	c.opMu.Unlock()

	c.publishTimeline()
	c.publishStatus(StatusIdle, StatusAwaitingReply)

	req := &gateway.SendRequest{
		Message:         text,
		Model:           opts.Model,
		MaxTokens:       opts.MaxTokens,
		EnableStreaming: opts.Streaming,
		Messages:        window,
		SessionID:       sessionID,
	}
	if req.Model == "" {
		req.Model = c.selectedModelID()
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = settings.DefaultMaxTokens
	}

	resp, err := c.gateway.SendMessage(ctx, req)

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err != nil {
		c.mu.Lock()
		c.status = StatusIdle
		c.mu.Unlock()
		c.recordError(errors.Wrap(err, "could not send message"))
		c.publishStatus(StatusAwaitingReply, StatusIdle)
		return err
	}

	if resp.SessionID != "" {
		sessionID = resp.SessionID
	}
	log.Debug().
		Str("session_id", sessionID).
		Float64("response_time", resp.ResponseTime).
		Msg("reply received")

	timeline, refetchErr := c.refetch(ctx, sessionID)
	if refetchErr != nil {
		// keep what we have and add the reply we did receive
		c.mu.RLock()
		timeline = c.timeline.Append(replyMessage(resp))
		c.mu.RUnlock()
	} else {
		annotateResponseTime(timeline, resp)
	}

	c.mu.Lock()
	c.install(sessionID, timeline)
	c.status = StatusIdle
	c.lastError = nil
	c.mu.Unlock()

	if refetchErr != nil {
		c.recordError(errors.Wrapf(refetchErr, "could not reload session %s", sessionID))
	}

	c.publishTimeline()
	_, _ = c.Refresh(ctx)
	c.publishStatus(StatusAwaitingReply, StatusIdle)
	return nil
}

// ClearSession empties the active session on the backend. The session keeps its id.
// Without an active session this does nothing.
func (c *Core) ClearSession(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.checkIdle(); err != nil {
		return err
	}

	sessionID := c.activeSession()
	if sessionID == "" {
		return nil
	}
	c.warnIfUnknown(sessionID, "clear")

	if err := c.gateway.ClearSession(ctx, sessionID); err != nil {
		c.recordError(errors.Wrapf(err, "could not clear session %s", sessionID))
		return err
	}

	timeline, err := c.refetch(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("could not reload cleared session")
	}
	// the backend just emptied it, whatever it sent back
	timeline = timeline.Reset()

	c.mu.Lock()
	c.install(sessionID, timeline)
	c.lastError = nil
	c.mu.Unlock()

	log.Info().Str("session_id", sessionID).Msg("session cleared")

	c.publishTimeline()
	_, _ = c.Refresh(ctx)
	return nil
}

// ClearAllSessions deletes every session on the backend and drops the active one.
func (c *Core) ClearAllSessions(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.checkIdle(); err != nil {
		return err
	}

	if err := c.gateway.ClearAllSessions(ctx); err != nil {
		c.recordError(errors.Wrap(err, "could not clear all sessions"))
		return err
	}

	c.mu.Lock()
	c.install("", conversation.NewTimeline(c.system))
	c.registry.Clear()
	c.lastError = nil
	c.mu.Unlock()

	log.Info().Msg("all sessions cleared")

	c.publishTimeline()
	c.publish(events.NewSessionsRefreshedEvent(c.metadata(), []session.Session{}))
	return nil
}

// RenameSession sets the title of sessionID, or of the active session when empty.
func (c *Core) RenameSession(ctx context.Context, sessionID string, title string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if sessionID == "" {
		sessionID = c.activeSession()
	}
	if sessionID == "" {
		return ErrNoSession
	}
	c.warnIfUnknown(sessionID, "rename")

	if err := c.gateway.RenameSession(ctx, sessionID, title); err != nil {
		c.recordError(errors.Wrapf(err, "could not rename session %s", sessionID))
		return err
	}

	_, _ = c.Refresh(ctx)
	return nil
}

// DeleteSession removes one session. Deleting the active session leaves no session active.
func (c *Core) DeleteSession(ctx context.Context, sessionID string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.checkIdle(); err != nil {
		return err
	}
	c.warnIfUnknown(sessionID, "delete")

	if err := c.gateway.DeleteSession(ctx, sessionID); err != nil {
		c.recordError(errors.Wrapf(err, "could not delete session %s", sessionID))
		return err
	}

	c.mu.Lock()
	wasActive := c.activeSessionID == sessionID
	if wasActive {
		c.install("", conversation.NewTimeline(c.system))
	}
	c.lastError = nil
	c.mu.Unlock()

	if wasActive {
		c.publishTimeline()
	}
	_, _ = c.Refresh(ctx)
	return nil
}

// ToggleChecklistItem flips one item's completion. It never talks to the backend.
func (c *Core) ToggleChecklistItem(id string) bool {
	if !c.checklist.Toggle(id) {
		return false
	}
	c.publishChecklist()
	return true
}

// SelectModel picks the model used by later sends, by catalog label or identifier.
func (c *Core) SelectModel(labelOrID string) error {
	id, ok := c.catalog.Resolve(labelOrID)
	if !ok {
		return errors.Wrapf(ErrUnknownModel, "%q", labelOrID)
	}
	c.mu.Lock()
	c.selectModelID(id)
	c.mu.Unlock()
	return nil
}

func (c *Core) refetch(ctx context.Context, sessionID string) (conversation.Timeline, error) {
	if sessionID == "" {
		return conversation.NewTimeline(c.system), errors.New("backend did not return a session id")
	}
	resp, err := c.gateway.GetSessionHistory(ctx, sessionID)
	if err != nil {
		return conversation.NewTimeline(c.system), err
	}
	return history.Normalize(c.system, resp.ConversationHistory), nil
}

// install replaces the timeline and rebuilds the checklist from it. Callers hold mu.
func (c *Core) install(sessionID string, timeline conversation.Timeline) {
	c.activeSessionID = sessionID
	c.timeline = timeline
	if last, ok := timeline.LastAssistant(); ok {
		c.checklist.Replace(c.extractor.Extract(last.Content))
	} else {
		c.checklist.Clear()
	}
}

// selectModelID updates the selected label when id is in the catalog. Callers hold mu.
func (c *Core) selectModelID(id string) {
	if label, ok := c.catalog.LabelOf(id); ok {
		c.selectedModel = label
		return
	}
	if id != "" {
		log.Debug().Str("model", id).Msg("model not in catalog, keeping selection")
	}
}

func (c *Core) selectedModelID() string {
	c.mu.RLock()
	label := c.selectedModel
	c.mu.RUnlock()
	if id, ok := c.catalog.IDOf(label); ok {
		return id
	}
	id, _ := c.catalog.IDOf(c.catalog.DefaultLabel())
	return id
}

func (c *Core) activeSession() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeSessionID
}

func (c *Core) checkIdle() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status == StatusAwaitingReply {
		return ErrAwaitingReply
	}
	return nil
}

func (c *Core) warnIfUnknown(sessionID string, op string) {
	if !c.registry.Has(sessionID) {
		log.Warn().Err(ErrUnknownSession).Str("session_id", sessionID).Str("op", op).Msg("session not in registry, trying anyway")
	}
}

func (c *Core) recordError(err error) {
	log.Error().Err(err).Msg("conversation operation failed")
	c.mu.Lock()
	c.lastError = err
	c.mu.Unlock()
	c.publishError(err)
}

func replyMessage(resp *gateway.SendResponse) conversation.Message {
	opts := []conversation.MessageOption{conversation.WithResponseTime(resp.ResponseTime)}
	if resp.Timestamp != "" {
		opts = append(opts, conversation.WithTimestamp(resp.Timestamp))
	}
	return conversation.NewMessage(conversation.RoleAssistant, resp.Response, opts...)
}

// annotateResponseTime attaches the reply latency to the matching final assistant message.
func annotateResponseTime(timeline conversation.Timeline, resp *gateway.SendResponse) {
	if len(timeline) == 0 {
		return
	}
	last := &timeline[len(timeline)-1]
	if last.IsAssistant() && last.Content == resp.Response {
		rt := resp.ResponseTime
		last.ResponseTime = &rt
	}
}
