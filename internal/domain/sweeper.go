package domain

import (
	"errors"
	"time"
)

// Sweeper is a registered SLA sweeper instance
type Sweeper struct {
	ID              int64
	Name            string
	Status          SweeperStatus
	LastSeen        time.Time
	OrdersEvaluated int64
	LastSweepAt     *time.Time
	CreatedAt       time.Time
}

type SweeperStatus string

const (
	SweeperStatusOnline  SweeperStatus = "online"
	SweeperStatusOffline SweeperStatus = "offline"
)

// NewSweeper creates a new sweeper registration
func NewSweeper(name string, now time.Time) (*Sweeper, error) {
	if name == "" {
		return nil, errors.New("sweeper name is required")
	}

	return &Sweeper{
		Name:      name,
		Status:    SweeperStatusOnline,
		LastSeen:  now,
		CreatedAt: now,
	}, nil
}

// SetOffline marks the sweeper as offline
func (s *Sweeper) SetOffline() {
	s.Status = SweeperStatusOffline
}

// IsOnline checks if the sweeper is considered online based on last heartbeat
func (s *Sweeper) IsOnline(now time.Time, heartbeatTimeout time.Duration) bool {
	if s.Status == SweeperStatusOffline {
		return false
	}
	return now.Sub(s.LastSeen) <= heartbeatTimeout
}
