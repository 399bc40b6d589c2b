// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/installment-engine/installment"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	schedules map[installment.ScheduleID]installment.Schedule
}

func NewMemory() *Memory {
	return &Memory{
		schedules: make(map[installment.ScheduleID]installment.Schedule),
	}
}

// SaveSchedule stores a deep copy so later caller mutations never leak in.
func (m *Memory) SaveSchedule(_ context.Context, s installment.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = s.Clone()
	return nil
}

func (m *Memory) GetSchedule(_ context.Context, id installment.ScheduleID) (installment.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedules[id]
	if !ok {
		return installment.Schedule{}, installment.ErrScheduleNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) ListSchedules(_ context.Context) ([]installment.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]installment.Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		result = append(result, s.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) DeleteSchedule(_ context.Context, id installment.ScheduleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.schedules[id]; !ok {
		return installment.ErrScheduleNotFound
	}
	delete(m.schedules, id)
	return nil
}

// Reset drops every schedule.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = make(map[installment.ScheduleID]installment.Schedule)
}

var _ installment.Store = (*Memory)(nil)
