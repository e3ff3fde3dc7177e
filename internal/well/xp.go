package well

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
)

// MaxXPAward bounds a single base award so the bonus arithmetic cannot overflow.
const MaxXPAward = 1_000_000

// LevelForXP returns floor(sqrt(total/100)) + 1.
func LevelForXP(total int64) int64 {
	if total <= 0 {
		return 1
	}
	return isqrt(total/100) + 1
}

// XPForLevel returns the minimum total XP at which level is reached.
func XPForLevel(level int64) int64 {
	if level <= 1 {
		return 0
	}
	return 100 * (level - 1) * (level - 1)
}

func isqrt(n int64) int64 {
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

// Progress describes where a total sits between two levels.
type Progress struct {
	TotalXP      int64   `json:"total_xp"`
	Level        int64   `json:"level"`
	LevelFloorXP int64   `json:"level_floor_xp"`
	NextLevelXP  int64   `json:"next_level_xp"`
	Progress     float64 `json:"progress"` // 0-1 toward the next level
}

// ProgressFor derives level progress from a total.
func ProgressFor(total int64) Progress {
	level := LevelForXP(total)
	p := Progress{
		TotalXP:      total,
		Level:        level,
		LevelFloorXP: XPForLevel(level),
		NextLevelXP:  XPForLevel(level + 1),
	}
	if span := p.NextLevelXP - p.LevelFloorXP; span > 0 {
		p.Progress = float64(total-p.LevelFloorXP) / float64(span)
	}
	return p
}

// userLocks hands out one mutex per user so XP credits for a user are
// serialized. An entry lives only while some caller holds or waits for it.
type userLocks struct {
	mu    sync.Mutex
	users map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	if l.users == nil {
		l.users = make(map[string]*userLock)
	}
	ul, ok := l.users[userID]
	if !ok {
		ul = &userLock{}
		l.users[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.users, userID)
		}
		l.mu.Unlock()
	}
}

// AwardXP evaluates the user's current streak bonus, credits floor(base *
// multiplier) and returns the stored XP event. base must be positive.
func (s *WellService) AwardXP(ctx context.Context, userID string, base int64, label string) (*XPEvent, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalid("user_id", "is required")
	}
	if base <= 0 {
		return nil, invalid("amount", "must be greater than zero")
	}
	if base > MaxXPAward {
		return nil, invalid("amount", fmt.Sprintf("must not exceed %d", MaxXPAward))
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	bonus := s.CalculateXPBonus(ctx, userID)
	event := &XPEvent{
		ID:         s.idgen.New(),
		UserID:     userID,
		Base:       base,
		Multiplier: bonus.Multiplier,
		Awarded:    bonus.Apply(base),
		Label:      strings.TrimSpace(label),
		CreatedAt:  s.clock.Now().UTC(),
	}
	total, err := s.database.CreditXP(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("crediting xp: %w", err)
	}
	event.TotalXP = total

	s.metrics.XPCredited(event.Awarded, event.Multiplier)
	s.logger.Info("xp credited", "user", userID, "base", base, "multiplier", event.Multiplier, "awarded", event.Awarded, "total", total)
	return event, nil
}

// AddXP is AwardXP returning only the new total.
func (s *WellService) AddXP(ctx context.Context, userID string, base int64, label string) (int64, error) {
	event, err := s.AwardXP(ctx, userID, base, label)
	if err != nil {
		return 0, err
	}
	return event.TotalXP, nil
}

// GetXP returns the user's total XP. On a store failure it returns 0 with the error.
func (s *WellService) GetXP(ctx context.Context, userID string) (int64, error) {
	total, err := s.database.GetXP(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("reading xp: %w", err)
	}
	return total, nil
}

// GetLevel recomputes the level from the stored total on every call.
func (s *WellService) GetLevel(ctx context.Context, userID string) (int64, error) {
	total, err := s.GetXP(ctx, userID)
	return LevelForXP(total), err
}

func (s *WellService) GetProgress(ctx context.Context, userID string) (Progress, error) {
	total, err := s.GetXP(ctx, userID)
	return ProgressFor(total), err
}

// XPHistory returns up to limit XP events, newest first.
func (s *WellService) XPHistory(ctx context.Context, userID string, limit int) ([]*XPEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	events, err := s.database.ListXPEvents(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing xp events: %w", err)
	}
	return events, nil
}

// CalculateXPBonus evaluates the streak multiplier from the last three days of
// the user's weekly aggregate. It never fails: a store error yields NoBonus.
func (s *WellService) CalculateXPBonus(ctx context.Context, userID string) BonusBreakdown {
	week, err := s.ComputeAggregate(ctx, userID, PeriodWeekly, s.clock.Now())
	if err != nil {
		s.logger.Warn("evaluating xp bonus", "user", userID, "error", err)
		return NoBonus
	}
	return EvaluateBonus(week)
}
