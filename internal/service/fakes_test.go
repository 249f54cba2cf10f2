package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/contract"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/pkg/events"
	"therapy-chat-be/pkg/llm"

	"github.com/google/uuid"
)

// fakeUoW embeds the interfaces so tests only implement what a service
// touches; anything else panics.
type fakeUoW struct {
	unitofwork.UnitOfWork

	snapshots *fakeSnapshotRepo
	training  *fakeTrainingRepo
	invites   *fakeInviteRepo
	teams     *fakeTeamRepo
	users     *fakeUserRepo
	locks     *fakeLockRepo
	sessions  *fakeSessionRepo
	messages  *fakeMessageRepo
	emotions  *fakeEmotionRepo
	committed bool
}

func (u *fakeUoW) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return u }

func (u *fakeUoW) Begin(context.Context) error { return nil }
func (u *fakeUoW) Commit() error               { u.committed = true; return nil }
func (u *fakeUoW) Rollback() error             { return nil }

func (u *fakeUoW) SnapshotRepository() contract.SnapshotRepository       { return u.snapshots }
func (u *fakeUoW) TrainingRowRepository() contract.TrainingRowRepository { return u.training }
func (u *fakeUoW) InviteRepository() contract.InviteRepository           { return u.invites }
func (u *fakeUoW) TeamRepository() contract.TeamRepository               { return u.teams }
func (u *fakeUoW) UserRepository() contract.UserRepository               { return u.users }
func (u *fakeUoW) ExportLockRepository() contract.ExportLockRepository   { return u.locks }
func (u *fakeUoW) ChatSessionRepository() contract.ChatSessionRepository { return u.sessions }
func (u *fakeUoW) MessageRepository() contract.MessageRepository         { return u.messages }
func (u *fakeUoW) EmotionLogRepository() contract.EmotionLogRepository   { return u.emotions }

func byID(specs []specification.Specification) (uuid.UUID, bool) {
	for _, s := range specs {
		if v, ok := s.(specification.ByID); ok {
			return v.ID, true
		}
	}
	return uuid.Nil, false
}

type fakeSnapshotRepo struct {
	contract.SnapshotRepository

	mu      sync.Mutex
	byID    map[uuid.UUID]*model.FineTuneSnapshot
	updates []map[string]interface{}
	retries int
	// staleVersions makes the next NextVersion calls answer as if a
	// concurrent create had not been seen yet.
	staleVersions int
}

func newFakeSnapshotRepo(items ...*model.FineTuneSnapshot) *fakeSnapshotRepo {
	r := &fakeSnapshotRepo{byID: make(map[uuid.UUID]*model.FineTuneSnapshot)}
	for _, s := range items {
		r.byID[s.Id] = s
	}
	return r
}

func (r *fakeSnapshotRepo) CreateIfAbsent(_ context.Context, s *model.FineTuneSnapshot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.FilterHash == s.FilterHash {
			return false, nil
		}
	}
	for _, existing := range r.byID {
		if existing.Name == s.Name && existing.Version == s.Version {
			return false, contract.ErrSnapshotVersionTaken
		}
	}
	cp := *s
	r.byID[s.Id] = &cp
	return true, nil
}

func (r *fakeSnapshotRepo) NextVersion(_ context.Context, name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := 0
	for _, s := range r.byID {
		if s.Name == name && s.Version > latest {
			latest = s.Version
		}
	}
	if r.staleVersions > 0 {
		r.staleVersions--
		return latest, nil
	}
	return latest + 1, nil
}

func (r *fakeSnapshotRepo) ClaimKickoff(_ context.Context, id uuid.UUID, staleBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.byID[id]
	if s == nil || s.JobId != "" {
		return false, nil
	}
	stale := s.JobStatus == model.JobStatusSubmitting && s.UpdatedAt.Before(staleBefore)
	if s.JobStatus != model.JobStatusPending && !stale {
		return false, nil
	}
	s.JobStatus = model.JobStatusSubmitting
	s.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeSnapshotRepo) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, fields)
	s := r.byID[id]
	if s == nil {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "job_status":
			s.JobStatus = v.(string)
		case "job_id":
			s.JobId = v.(string)
		case "fine_tuned_model":
			s.FineTunedModel = v.(string)
		case "last_error":
			s.LastError = v.(string)
		case "training_file_id":
			s.TrainingFileId = v.(string)
		case "storage_uri":
			s.StorageURI = v.(string)
		}
	}
	return nil
}

func (r *fakeSnapshotRepo) IncrementRetry(_ context.Context, id uuid.UUID, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
	if s := r.byID[id]; s != nil {
		s.RetryCount++
		s.LastError = lastError
	}
	return nil
}

func (r *fakeSnapshotRepo) FindOne(_ context.Context, specs ...specification.Specification) (*model.FineTuneSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := byID(specs); ok {
		if s := r.byID[id]; s != nil {
			cp := *s
			return &cp, nil
		}
		return nil, nil
	}
	for _, spec := range specs {
		if h, ok := spec.(specification.ByFilterHash); ok {
			for _, s := range r.byID {
				if s.FilterHash == h.Hash {
					cp := *s
					return &cp, nil
				}
			}
		}
	}
	return nil, nil
}

type fakeTrainingRepo struct {
	contract.TrainingRowRepository
	rows       []*model.TrainingRow
	aggregates []*model.EmotionAggregate
	calls      int
	limits     []int
}

func (r *fakeTrainingRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*model.TrainingRow, error) {
	r.calls++
	for _, s := range specs {
		if p, ok := s.(specification.Pagination); ok && p.Limit > 0 {
			r.limits = append(r.limits, p.Limit)
			if p.Limit < len(r.rows) {
				return r.rows[:p.Limit], nil
			}
		}
	}
	return r.rows, nil
}

func (r *fakeTrainingRepo) Count(context.Context, ...specification.Specification) (int64, error) {
	r.calls++
	return int64(len(r.rows)), nil
}

func (r *fakeTrainingRepo) Aggregate(context.Context, ...specification.Specification) ([]*model.EmotionAggregate, error) {
	r.calls++
	return r.aggregates, nil
}

type fakeInviteRepo struct {
	contract.InviteRepository
	byToken map[string]*model.InviteLog
	markErr error
}

func (r *fakeInviteRepo) Accept(_ context.Context, token string, userId uuid.UUID, at time.Time) (bool, error) {
	inv := r.byToken[token]
	if inv == nil || (inv.Status != model.InviteStatusPending && inv.Status != model.InviteStatusSent) {
		return false, nil
	}
	inv.Status = model.InviteStatusAccepted
	inv.AcceptedBy = &userId
	inv.AcceptedAt = &at
	return true, nil
}

func (r *fakeInviteRepo) FindOne(_ context.Context, specs ...specification.Specification) (*model.InviteLog, error) {
	if id, ok := byID(specs); ok {
		for _, inv := range r.byToken {
			if inv.Id == id {
				cp := *inv
				return &cp, nil
			}
		}
		return nil, nil
	}
	for _, s := range specs {
		if t, ok := s.(specification.ByToken); ok {
			if inv := r.byToken[t.Token]; inv != nil {
				cp := *inv
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeInviteRepo) find(id uuid.UUID) *model.InviteLog {
	for _, inv := range r.byToken {
		if inv.Id == id {
			return inv
		}
	}
	return nil
}

func (r *fakeInviteRepo) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	if r.markErr != nil {
		return r.markErr
	}
	if inv := r.find(id); inv != nil {
		inv.Status = model.InviteStatusSent
		inv.Error = ""
		inv.SentAt = &at
	}
	return nil
}

func (r *fakeInviteRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	if r.markErr != nil {
		return r.markErr
	}
	if inv := r.find(id); inv != nil {
		inv.Status = model.InviteStatusFailed
		inv.Error = reason
	}
	return nil
}

type fakeTeamRepo struct {
	contract.TeamRepository
	members []*model.TeamMember
	byID    map[uuid.UUID]*model.Team
}

func (r *fakeTeamRepo) FindOne(_ context.Context, specs ...specification.Specification) (*model.Team, error) {
	if id, ok := byID(specs); ok {
		return r.byID[id], nil
	}
	return nil, nil
}

func (r *fakeTeamRepo) AddMember(_ context.Context, m *model.TeamMember) error {
	r.members = append(r.members, m)
	return nil
}

type fakeUserRepo struct {
	contract.UserRepository
	teams map[uuid.UUID]uuid.UUID
	byID  map[uuid.UUID]*model.User
}

func (r *fakeUserRepo) FindOne(_ context.Context, specs ...specification.Specification) (*model.User, error) {
	if id, ok := byID(specs); ok {
		return r.byID[id], nil
	}
	return nil, nil
}

func (r *fakeUserRepo) SetTeam(_ context.Context, userId, teamId uuid.UUID) error {
	if r.teams == nil {
		r.teams = make(map[uuid.UUID]uuid.UUID)
	}
	r.teams[userId] = teamId
	return nil
}

type fakeLocks struct {
	ILockService
	active *model.ExportLock
}

func (l *fakeLocks) Active(context.Context) (*model.ExportLock, error) { return l.active, nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type fakeLockRepo struct {
	contract.ExportLockRepository

	mu    sync.Mutex
	locks []*model.ExportLock
}

func (r *fakeLockRepo) DeleteWhere(_ context.Context, specs ...specification.Specification) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cutoff *time.Time
	for _, s := range specs {
		if b, ok := s.(specification.ExpiresBefore); ok {
			at := b.At
			cutoff = &at
		}
	}
	var kept []*model.ExportLock
	var n int64
	for _, l := range r.locks {
		if cutoff == nil || !l.ExpiresAt.After(*cutoff) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.locks = kept
	return n, nil
}

func (r *fakeLockRepo) remaining() []*model.ExportLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.ExportLock(nil), r.locks...)
}

type fakeSessionRepo struct {
	contract.ChatSessionRepository
	byID map[uuid.UUID]*model.ChatSession
}

func newFakeSessionRepo(items ...*model.ChatSession) *fakeSessionRepo {
	r := &fakeSessionRepo{byID: make(map[uuid.UUID]*model.ChatSession)}
	for _, s := range items {
		r.byID[s.Id] = s
	}
	return r
}

func (r *fakeSessionRepo) Create(_ context.Context, s *model.ChatSession) error {
	s.CreatedAt = time.Now()
	r.byID[s.Id] = s
	return nil
}

func (r *fakeSessionRepo) FindOne(_ context.Context, specs ...specification.Specification) (*model.ChatSession, error) {
	if id, ok := byID(specs); ok {
		return r.byID[id], nil
	}
	var newest *model.ChatSession
	for _, spec := range specs {
		owner, ok := spec.(specification.ByUserID)
		if !ok {
			continue
		}
		for _, s := range r.byID {
			if s.UserId == owner.UserID && (newest == nil || s.CreatedAt.After(newest.CreatedAt)) {
				newest = s
			}
		}
	}
	return newest, nil
}

func (r *fakeSessionRepo) SaveSummary(_ context.Context, id uuid.UUID, summary, title string) (bool, error) {
	s := r.byID[id]
	if s == nil {
		return false, nil
	}
	s.Summary = summary
	if s.Title == "" {
		s.Title = title
	}
	return true, nil
}

type fakeMessageRepo struct {
	contract.MessageRepository

	mu       sync.Mutex
	items    []*model.Message
	findErrs []error
}

func (r *fakeMessageRepo) Create(_ context.Context, m *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.CreatedAt = time.Now()
	r.items = append(r.items, m)
	return nil
}

// FindOne fails with the queued errors first.
func (r *fakeMessageRepo) FindOne(_ context.Context, specs ...specification.Specification) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.findErrs) > 0 {
		err := r.findErrs[0]
		r.findErrs = r.findErrs[1:]
		return nil, err
	}
	if id, ok := byID(specs); ok {
		for _, m := range r.items {
			if m.Id == id {
				return m, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) FindRecent(_ context.Context, sessionId uuid.UUID, limit int) ([]*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Message
	for _, m := range r.items {
		if m.SessionId == sessionId {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeMessageRepo) roles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for _, m := range r.items {
		out = append(out, m.Role)
	}
	return out
}

type fakeEmotionRepo struct {
	contract.EmotionLogRepository

	mu   sync.Mutex
	logs []*model.EmotionLog
}

func (r *fakeEmotionRepo) Create(_ context.Context, l *model.EmotionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
	return nil
}

type llmAnswer struct {
	text string
	err  error
}

// fakeLLM replays answers in order and repeats the last one.
type fakeLLM struct {
	mu      sync.Mutex
	answers []llmAnswer
	calls   int
	prompts []string
}

func (f *fakeLLM) next() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.answers) == 0 {
		return "", errors.New("no answer configured")
	}
	a := f.answers[0]
	if len(f.answers) > 1 {
		f.answers = f.answers[1:]
	}
	return a.text, a.err
}

func (f *fakeLLM) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	f.mu.Lock()
	if n := len(history); n > 0 {
		f.prompts = append(f.prompts, history[n-1].Content)
	}
	f.mu.Unlock()
	return f.next()
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.next()
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
