package blinds

import (
	"context"
)

const (
	FullOpenPosition  = 0
	FullClosePosition = 100
)

// MotionState values match the HomeKit PositionState characteristic.
type MotionState int

const (
	Decreasing MotionState = 0
	Increasing MotionState = 1
	Stopped    MotionState = 2
)

func (s MotionState) String() string {
	switch s {
	case Decreasing:
		return "decreasing"
	case Increasing:
		return "increasing"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Snapshot is a consistent view of the position state at one commit.
type Snapshot struct {
	Position       int         `json:"position"`
	State          MotionState `json:"state"`
	TargetPosition int         `json:"target_position"`
}

type UpdateHandler func(s Snapshot)

type Blinds interface {
	Name() string

	Position() int
	State() MotionState
	TargetPosition() int
	Snapshot() Snapshot

	OnUpdate(h UpdateHandler)

	SetTargetPosition(ctx context.Context, position int) error
	Stop(ctx context.Context) error
}

func IsBoundary(position int) bool {
	return position == FullOpenPosition || position == FullClosePosition
}

func InRange(position int) bool {
	return position >= FullOpenPosition && position <= FullClosePosition
}
