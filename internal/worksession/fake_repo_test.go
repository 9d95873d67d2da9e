package worksession

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
	"github.com/hitoshi/timecard/internal/timezone"
)

// memoryRepo はテスト用のインメモリWorkSessionRepository。
// DBの部分一意インデックスと同様に、進行中セッションを1ユーザー1件に制限する。
type memoryRepo struct {
	mu       sync.Mutex
	sessions map[string]model.Session

	// skipUniqueCheck はDB側の一意制約がない状況を再現する
	skipUniqueCheck bool
	findErr         error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: make(map[string]model.Session)}
}

func (r *memoryRepo) Create(ctx context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.End == nil && !r.skipUniqueCheck {
		for _, existing := range r.sessions {
			if existing.UserID == s.UserID && existing.End == nil {
				return repository.ErrOpenSessionExists
			}
		}
	}
	r.sessions[s.ID] = clone(*s)
	return nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	c := clone(s)
	return &c, nil
}

func (r *memoryRepo) FindOpenByUserID(ctx context.Context, userID string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.End == nil {
			c := clone(s)
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) Close(ctx context.Context, id string, end time.Time, durationMinutes int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.End != nil {
		return false, nil
	}
	s.End = &end
	s.DurationMinutes = &durationMinutes
	s.UpdatedAt = end
	r.sessions[id] = s
	return true, nil
}

func (r *memoryRepo) Update(ctx context.Context, s *model.Session, prev *model.Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[s.ID]
	if !ok || !stored.UpdatedAt.Equal(prev.UpdatedAt) || !sameEnd(stored.End, prev.End) {
		return false, nil
	}
	r.sessions[s.ID] = clone(*s)
	return true, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false, nil
	}
	delete(r.sessions, id)
	return true, nil
}

func (r *memoryRepo) ListByUserAndDateRange(ctx context.Context, userID, startDate, endDate string) ([]*model.Session, error) {
	return r.list(func(s model.Session) bool {
		return s.UserID == userID && timezone.InRange(s.Date, startDate, endDate)
	}), nil
}

func (r *memoryRepo) ListByDateRange(ctx context.Context, startDate, endDate string) ([]*model.Session, error) {
	return r.list(func(s model.Session) bool {
		return timezone.InRange(s.Date, startDate, endDate)
	}), nil
}

func (r *memoryRepo) list(match func(model.Session) bool) []*model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Session
	for _, s := range r.sessions {
		if match(s) {
			c := clone(s)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func sameEnd(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// openCount はユーザーの進行中セッション数を返す。
func (r *memoryRepo) openCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.End == nil {
			n++
		}
	}
	return n
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// clone はポインタフィールドを複製し、呼び出し側の変更が保存値に波及しないようにする。
func clone(s model.Session) model.Session {
	if s.End != nil {
		e := *s.End
		s.End = &e
	}
	if s.DurationMinutes != nil {
		d := *s.DurationMinutes
		s.DurationMinutes = &d
	}
	if s.Description != nil {
		desc := *s.Description
		s.Description = &desc
	}
	return s
}

var _ repository.WorkSessionRepository = (*memoryRepo)(nil)
