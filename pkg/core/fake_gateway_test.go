package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-go-golems/triage/pkg/gateway"
	"github.com/go-go-golems/triage/pkg/history"
	"github.com/go-go-golems/triage/pkg/session"
)

// fakeGateway is an in-memory backend storing exchange-form histories.
type fakeGateway struct {
	mu sync.Mutex

	order     []string
	histories map[string][]history.Exchange
	models    map[string]string
	nextID    int

	reply func(req *gateway.SendRequest) string
	// block, when set, is waited on inside SendMessage
	block chan struct{}
	// entered receives once SendMessage is running
	entered chan struct{}

	failures map[string]error
	calls    map[string]int
	sends    []gateway.SendRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		histories: map[string][]history.Exchange{},
		models:    map[string]string{},
		failures:  map[string]error{},
		calls:     map[string]int{},
		reply: func(req *gateway.SendRequest) string {
			return "ack: " + req.Message
		},
	}
}

func strPtr(s string) *string { return &s }

func (f *fakeGateway) seed(id string, model string, exchanges ...history.Exchange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.histories[id]; !ok {
		f.order = append(f.order, id)
	}
	f.histories[id] = exchanges
	f.models[id] = model
}

func (f *fakeGateway) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) lastSend() gateway.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[len(f.sends)-1]
}

func (f *fakeGateway) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if err := f.failures[op]; err != nil {
		return &gateway.TransportError{Op: op, Err: err}
	}
	return nil
}

func (f *fakeGateway) newID() string {
	f.nextID++
	return fmt.Sprintf("session-%d", f.nextID)
}

func (f *fakeGateway) ListSessions(ctx context.Context) ([]session.Session, error) {
	if err := f.enter("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := []session.Session{}
	for _, id := range f.order {
		preview := "Empty chat"
		if ex := f.histories[id]; len(ex) > 0 && ex[0].User != nil {
			preview = session.Truncate(*ex[0].User, 50)
		}
		ret = append(ret, session.Session{
			SessionID:     id,
			Model:         f.models[id],
			Preview:       preview,
			ExchangeCount: len(f.histories[id]),
		})
	}
	return ret, nil
}

func (f *fakeGateway) GetSessionHistory(ctx context.Context, sessionID string) (*gateway.HistoryResponse, error) {
	if err := f.enter("history"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ex, ok := f.histories[sessionID]
	if !ok {
		return nil, &gateway.TransportError{Op: "history", StatusCode: 404, Message: "Session not found"}
	}
	return &gateway.HistoryResponse{
		ConversationHistory: history.NewExchangeRaw(append([]history.Exchange(nil), ex...)...),
		SessionID:           sessionID,
		Model:               f.models[sessionID],
		TotalExchanges:      len(ex),
	}, nil
}

func (f *fakeGateway) SendMessage(ctx context.Context, req *gateway.SendRequest) (*gateway.SendResponse, error) {
	f.mu.Lock()
	f.sends = append(f.sends, *req)
	entered, block := f.entered, f.block
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err := f.enter("send"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := req.SessionID
	if id == "" {
		id = f.newID()
		f.order = append(f.order, id)
		f.models[id] = req.Model
	}
	reply := f.reply(req)
	f.histories[id] = append(f.histories[id], history.Exchange{
		User:      strPtr(req.Message),
		Assistant: strPtr(reply),
		Timestamp: "2024-05-01 10:00:00",
	})
	return &gateway.SendResponse{
		Response:     reply,
		ResponseTime: 1.5,
		Timestamp:    "10:00",
		SessionID:    id,
		Model:        req.Model,
	}, nil
}

func (f *fakeGateway) CreateSession(ctx context.Context, model string) (*gateway.CreateSessionResponse, error) {
	if err := f.enter("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.order = append(f.order, id)
	f.histories[id] = nil
	f.models[id] = model
	return &gateway.CreateSessionResponse{SessionID: id, Model: model, Title: session.DefaultTitle}, nil
}

func (f *fakeGateway) ClearSession(ctx context.Context, sessionID string) error {
	if err := f.enter("clear"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histories[sessionID] = nil
	return nil
}

func (f *fakeGateway) ClearAllSessions(ctx context.Context) error {
	if err := f.enter("clear-all"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = nil
	f.histories = map[string][]history.Exchange{}
	f.models = map[string]string{}
	return nil
}

func (f *fakeGateway) RenameSession(ctx context.Context, sessionID string, title string) error {
	return f.enter("rename")
}

func (f *fakeGateway) DeleteSession(ctx context.Context, sessionID string) error {
	if err := f.enter("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.histories, sessionID)
	delete(f.models, sessionID)
	for i, id := range f.order {
		if id == sessionID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeGateway) Health(ctx context.Context) error {
	return f.enter("health")
}

func (f *fakeGateway) AllMessages(ctx context.Context) ([]gateway.SessionMessage, error) {
	if err := f.enter("all-messages"); err != nil {
		return nil, err
	}
	return []gateway.SessionMessage{}, nil
}

var _ gateway.Gateway = (*fakeGateway)(nil)
