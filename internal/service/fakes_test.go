package service_test

import (
	"context"
	"errors"
	"sync"

	"moderation-service/internal/models"
	"moderation-service/internal/repository"
)

type memoryStore struct {
	mu      sync.Mutex
	subs    map[string]*models.Submission
	updates []models.SubmissionUpdate

	// failOn makes Update fail when it writes this stage
	failOn models.Stage
}

func newMemoryStore(subs ...*models.Submission) *memoryStore {
	s := &memoryStore{subs: make(map[string]*models.Submission)}
	for _, sub := range subs {
		s.subs[sub.ID] = sub
	}
	return s
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *memoryStore) Update(_ context.Context, id string, upd models.SubmissionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return repository.ErrNotFound
	}
	if s.failOn != "" && upd.Stage != nil && *upd.Stage == s.failOn {
		return errors.New("database is locked")
	}
	s.updates = append(s.updates, upd)

	if upd.Stage != nil {
		sub.Stage = upd.Stage
	}
	if upd.Status != nil {
		sub.Status = *upd.Status
	}
	if upd.ImageURL != nil {
		sub.ImageURL = upd.ImageURL
	}
	if upd.OriginalImageURL != nil {
		sub.OriginalImageURL = upd.OriginalImageURL
	}
	if upd.Reasoning != nil {
		sub.Reasoning = upd.Reasoning
	}
	if upd.ErrorMessage != nil {
		sub.ErrorMessage = upd.ErrorMessage
	}
	if upd.ImageReplacedByAI != nil {
		sub.ImageReplacedByAI = *upd.ImageReplacedByAI
	}
	if upd.Violence != nil {
		sub.Violence = *upd.Violence
	}
	if upd.TechnicalAnalysis != nil {
		sub.TechnicalAnalysis = upd.TechnicalAnalysis
	}
	if upd.CompletedAt != nil {
		sub.CompletedAt = upd.CompletedAt
	}
	return nil
}

func (s *memoryStore) stages() []models.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Stage
	for _, upd := range s.updates {
		if upd.Stage != nil {
			out = append(out, *upd.Stage)
		}
	}
	return out
}

func (s *memoryStore) get(id string) models.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.subs[id]
}

// engineFunc adapts a function to the service Engine interface
type engineFunc func(ctx context.Context, rec models.Record) models.Record

func (f engineFunc) Run(ctx context.Context, rec models.Record) models.Record {
	return f(ctx, rec)
}

type fakeBlobs struct {
	url   string
	err   error
	calls int
	got   []byte
}

func (b *fakeBlobs) Upload(_ context.Context, data []byte, _ string) (string, error) {
	b.calls++
	b.got = data
	return b.url, b.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.StageEvent
	err    error
}

func (p *recordingPublisher) PublishStage(_ context.Context, ev models.StageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}
