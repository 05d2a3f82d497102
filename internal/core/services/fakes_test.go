package services

import (
	"context"
	"io"
	"livesync/internal/core/contracts"
	"livesync/internal/core/domain"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLog is an in-memory MessageLog whose feed is driven by the test.
type fakeLog struct {
	mu        sync.Mutex
	next      int64
	seq       int64
	appendErr error
	block     bool
	appended  []domain.Draft

	subscribeErr error
	afters       []domain.Timestamp
	feed         chan domain.FeedEvent
}

var _ contracts.MessageLog = (*fakeLog)(nil)

func newFakeLog() *fakeLog {
	return &fakeLog{next: 1000, feed: make(chan domain.FeedEvent)}
}

func (f *fakeLog) Append(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	f.mu.Lock()
	block, appendErr := f.block, f.appendErr
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return domain.Message{}, ctx.Err()
	}
	if appendErr != nil {
		return domain.Message{}, appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.appended = append(f.appended, draft)
	ts := domain.Timestamp{Millis: f.next, Seq: f.seq}
	return domain.Message{
		ID:        ts.String(),
		RoomID:    draft.RoomID,
		SenderID:  draft.SenderID,
		SessionID: draft.SessionID,
		Text:      draft.Text,
		Timestamp: ts,
	}, nil
}

func (f *fakeLog) Subscribe(ctx context.Context, roomID string, after domain.Timestamp) (<-chan domain.FeedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.afters = append(f.afters, after)
	out := make(chan domain.FeedEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-f.feed:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeLog) push(ev domain.FeedEvent) { f.feed <- ev }

func (f *fakeLog) lastAfter() domain.Timestamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.afters[len(f.afters)-1]
}

func added(roomID string, millis int64, text string) domain.FeedEvent {
	ts := domain.Timestamp{Millis: millis}
	return domain.FeedEvent{
		Kind: domain.ChildAdded,
		Message: domain.Message{
			ID:        ts.String(),
			RoomID:    roomID,
			Text:      text,
			Timestamp: ts,
		},
	}
}

// recordingSink captures everything a subscription or reporter hands to the UI.
type recordingSink struct {
	mu       sync.Mutex
	messages []domain.Message
	gaps     []error
	presence []domain.PresenceRecord
}

func (s *recordingSink) OnMessage(_ context.Context, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *recordingSink) OnGap(_ context.Context, _ string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gaps = append(s.gaps, err)
}

func (s *recordingSink) OnPresence(_ context.Context, rec domain.PresenceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence = append(s.presence, rec)
}

func (s *recordingSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Text)
	}
	return out
}

func (s *recordingSink) gapCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gaps)
}

func (s *recordingSink) onlineFlags() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, 0, len(s.presence))
	for _, p := range s.presence {
		out = append(out, p.Online)
	}
	return out
}

// fakePresenceStore records calls in order.
type fakePresenceStore struct {
	mu           sync.Mutex
	calls        []string
	records      map[string]domain.PresenceRecord
	pending      map[string]domain.PresenceRecord
	heartbeats   int
	registerErr  error
	setErr       error
	heartbeatErr error
}

var _ contracts.PresenceStore = (*fakePresenceStore)(nil)

func newFakePresenceStore() *fakePresenceStore {
	return &fakePresenceStore{
		records: make(map[string]domain.PresenceRecord),
		pending: make(map[string]domain.PresenceRecord),
	}
}

func (f *fakePresenceStore) OnDisconnect(_ context.Context, rec domain.PresenceRecord, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ondisconnect")
	if f.registerErr != nil {
		return f.registerErr
	}
	f.pending[rec.SessionID] = rec
	return nil
}

func (f *fakePresenceStore) CancelOnDisconnect(_ context.Context, _, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "cancel")
	delete(f.pending, sessionID)
	return nil
}

func (f *fakePresenceStore) SetPresence(_ context.Context, rec domain.PresenceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.Online {
		f.calls = append(f.calls, "set:online")
	} else {
		f.calls = append(f.calls, "set:offline")
	}
	if f.setErr != nil {
		return f.setErr
	}
	f.records[rec.SessionID] = rec
	return nil
}

func (f *fakePresenceStore) Heartbeat(_ context.Context, _, _ string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return f.heartbeatErr
}

func (f *fakePresenceStore) GetPresence(_ context.Context, roomID string) ([]domain.PresenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PresenceRecord
	for _, r := range f.records {
		if r.RoomID == roomID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakePresenceStore) Sweep(_ context.Context, _ time.Time) ([]domain.PresenceRecord, error) {
	return nil, nil
}

func (f *fakePresenceStore) Watch(ctx context.Context, _ string) (<-chan domain.PresenceRecord, error) {
	out := make(chan domain.PresenceRecord)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func (f *fakePresenceStore) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePresenceStore) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

// fakeTx runs fn directly.
type fakeTx struct{ err error }

func (t fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.err != nil {
		return t.err
	}
	return fn(ctx)
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session
	touched  int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (r *fakeSessionRepo) CreateSession(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) GetSession(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) TouchSession(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	r.touched++
	return nil
}

func (r *fakeSessionRepo) MarkLeft(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.LeftAt != nil {
		return domain.ErrSessionNotFound
	}
	now := time.Now()
	s.LeftAt = &now
	return nil
}

func (r *fakeSessionRepo) touchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touched
}

type sentFrame struct {
	sessionID string
	frame     any
}

type fakeRegistry struct {
	mu   sync.Mutex
	sent []sentFrame
}

var _ contracts.Registry = (*fakeRegistry)(nil)

func (r *fakeRegistry) Register(contracts.Client)   {}
func (r *fakeRegistry) Unregister(contracts.Client) {}

func (r *fakeRegistry) SendTo(_ context.Context, sessionID string, frame any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentFrame{sessionID: sessionID, frame: frame})
}

func (r *fakeRegistry) Broadcast(context.Context, string, any, string) {}

func (r *fakeRegistry) last() sentFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

type fakeArchive struct {
	msgs      []domain.Message
	lastLimit int
	err       error
}

func (a *fakeArchive) Save(_ context.Context, msg *domain.Message) error {
	a.msgs = append(a.msgs, *msg)
	return nil
}

func (a *fakeArchive) History(_ context.Context, roomID string, after domain.Timestamp, limit int) ([]domain.Message, error) {
	a.lastLimit = limit
	if a.err != nil {
		return nil, a.err
	}
	var out []domain.Message
	for _, m := range a.msgs {
		if m.RoomID == roomID && m.Timestamp.Compare(after) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}
