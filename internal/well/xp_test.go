package well

import (
	"sync"
	"testing"
)

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		total int64
		want  int64
	}{
		{-50, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{250, 2},
		{399, 2},
		{400, 3},
		{900, 4},
		{10_000, 11},
		{1_000_000, 101},
	}
	for _, tt := range tests {
		if got := LevelForXP(tt.total); got != tt.want {
			t.Errorf("LevelForXP(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestLevelForXP_InverseOfXPForLevel(t *testing.T) {
	for total := int64(0); total <= 50_000; total += 7 {
		level := LevelForXP(total)
		if floor := XPForLevel(level); floor > total {
			t.Fatalf("total %d: level %d floor %d above total", total, level, floor)
		}
		if next := XPForLevel(level + 1); next <= total {
			t.Fatalf("total %d: level %d next %d not above total", total, level, next)
		}
	}
}

func TestProgressFor(t *testing.T) {
	tests := []struct {
		total int64
		want  Progress
	}{
		{0, Progress{TotalXP: 0, Level: 1, LevelFloorXP: 0, NextLevelXP: 100, Progress: 0}},
		{250, Progress{TotalXP: 250, Level: 2, LevelFloorXP: 100, NextLevelXP: 400, Progress: 0.5}},
		{400, Progress{TotalXP: 400, Level: 3, LevelFloorXP: 400, NextLevelXP: 900, Progress: 0}},
	}
	for _, tt := range tests {
		if got := ProgressFor(tt.total); got != tt.want {
			t.Errorf("ProgressFor(%d) = %+v, want %+v", tt.total, got, tt.want)
		}
	}
}

// held returns the number of users with a live lock entry.
func (l *userLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

func TestUserLocks(t *testing.T) {
	t.Run("serializes one user", func(t *testing.T) {
		var (
			locks   userLocks
			wg      sync.WaitGroup
			inside  int
			overlap bool
			mu      sync.Mutex
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locks.lock("alice")
				mu.Lock()
				inside++
				if inside > 1 {
					overlap = true
				}
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				unlock()
			}()
		}
		wg.Wait()
		if overlap {
			t.Error("two holders of alice's lock overlapped")
		}
	})

	t.Run("entries are released", func(t *testing.T) {
		var locks userLocks
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				unlock := locks.lock(string(rune('a' + i%26)))
				unlock()
			}(i)
		}
		wg.Wait()
		if n := locks.held(); n != 0 {
			t.Errorf("held() = %d after all unlocks, want 0", n)
		}
	})

	t.Run("entry survives while another caller waits", func(t *testing.T) {
		var locks userLocks
		unlock := locks.lock("alice")
		acquired := make(chan func())
		go func() { acquired <- locks.lock("alice") }()

		unlock()
		second := <-acquired
		if n := locks.held(); n != 1 {
			t.Errorf("held() = %d while second holder has the lock, want 1", n)
		}
		second()
		if n := locks.held(); n != 0 {
			t.Errorf("held() = %d, want 0", n)
		}
	})
}
