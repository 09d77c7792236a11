package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// Service pairs a Processor with the session store that keeps each
// session's latest result.
type Service struct {
	proc         *Processor
	sessions     *SessionStore
	log          *slog.Logger
	cleanupEvery time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(proc *Processor, sessionTTL time.Duration, log *slog.Logger) *Service {
	every := sessionTTL / 4
	if every <= 0 || every > 5*time.Minute {
		every = 5 * time.Minute
	}
	return &Service{
		proc:         proc,
		sessions:     NewSessionStore(sessionTTL),
		log:          log,
		cleanupEvery: every,
	}
}

// Start launches the session cleanup loop.
func (s *Service) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if n := s.sessions.Cleanup(); n > 0 {
					s.log.Info("evicted idle sessions", "count", n, "remaining", s.sessions.Len())
				}
			}
		}
	}()
}

// Stop ends the cleanup loop and waits for it.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Service) Processor() *Processor { return s.proc }

func (s *Service) Sessions() *SessionStore { return s.sessions }

// session returns the named session, or a new one when id is empty.
func (s *Service) session(id string) (*Session, error) {
	if id == "" {
		return s.sessions.Create(), nil
	}
	sess := s.sessions.Get(id)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ProcessDocument runs a PDF page and stores the result in the session. On
// failure the session keeps its previous result.
func (s *Service) ProcessDocument(ctx context.Context, sessionID string, in Input) (*Session, *State, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return s.run(sess, func() (*State, error) { return s.proc.Process(ctx, in) })
}

// ProcessMarkup analyses markup and stores the result in the session.
func (s *Service) ProcessMarkup(ctx context.Context, sessionID, source, markup string) (*Session, *State, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return s.run(sess, func() (*State, error) { return s.proc.ProcessMarkup(ctx, source, markup) })
}

func (s *Service) run(sess *Session, fn func() (*State, error)) (*Session, *State, error) {
	log := s.log.With("session_id", sess.ID)
	sess.Begin()
	st, err := fn()
	if err != nil {
		sess.Fail(err)
		log.Warn("processing failed", "error", err)
		return sess, nil, err
	}
	sess.Complete(st)
	log.Info("processing complete", "tables", len(st.Document.Tables), "metrics", st.Metrics.Len(), "warnings", len(st.Warnings))
	return sess, st, nil
}
