package session

import (
	"context"
	"sync"

	"github.com/go-go-golems/triage/pkg/models"
	"github.com/rs/zerolog/log"
)

// Lister fetches the full session list from the backend.
type Lister interface {
	ListSessions(ctx context.Context) ([]Session, error)
}

// Registry holds the sessions known to the client, in backend order.
// It is safe for concurrent use.
type Registry struct {
	lister  Lister
	catalog *models.Catalog

	mu       sync.RWMutex
	sessions []Session
}

func NewRegistry(lister Lister, catalog *models.Catalog) *Registry {
	if catalog == nil {
		catalog = models.Default()
	}
	return &Registry{
		lister:   lister,
		catalog:  catalog,
		sessions: []Session{},
	}
}

// Refresh replaces the held set with the backend's list. On failure the previous
// set is kept and the error returned.
func (r *Registry) Refresh(ctx context.Context) ([]Session, error) {
	sessions, err := r.lister.ListSessions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not refresh session list, keeping previous")
		return r.Sessions(), err
	}

	r.mu.Lock()
	r.sessions = append([]Session{}, sessions...)
	r.mu.Unlock()

	log.Debug().Int("sessions", len(sessions)).Msg("session list refreshed")
	return r.Sessions(), nil
}

func (r *Registry) Sessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Session{}, r.sessions...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.SessionID == sessionID {
			return s, true
		}
	}
	return Session{}, false
}

func (r *Registry) Has(sessionID string) bool {
	_, ok := r.Get(sessionID)
	return ok
}

// Clear forgets every session, as after a clear-all.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = []Session{}
}

// TitleOf returns the session's preview, or DefaultTitle for sessions not yet listed.
func (r *Registry) TitleOf(sessionID string) string {
	s, ok := r.Get(sessionID)
	if !ok {
		return DefaultTitle
	}
	return s.Preview
}

// ModelLabelOf maps a model identifier to its catalog label.
func (r *Registry) ModelLabelOf(modelID string) string {
	if label, ok := r.catalog.LabelOf(modelID); ok {
		return label
	}
	return models.UnknownLabel
}

func (r *Registry) Catalog() *models.Catalog {
	return r.catalog
}
