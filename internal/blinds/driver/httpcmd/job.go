package httpcmd

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// motionJob is one traversal toward target. All fields except ctx are
// guarded by the owning Blinds' store lock.
type motionJob struct {
	id     string
	target int
	up     bool

	ctx    context.Context
	cancel context.CancelFunc

	started time.Time
	travel  time.Duration

	ticker  *time.Ticker
	timeout *time.Timer
	settle  *time.Timer
}

func newMotionJob(parent context.Context, target int, up bool, travel time.Duration) *motionJob {
	ctx, cancel := context.WithCancel(parent)
	return &motionJob{
		id:      uuid.NewString(),
		target:  target,
		up:      up,
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
		travel:  travel,
	}
}

func (j *motionJob) direction() string {
	if j.up {
		return commandUp
	}
	return commandDown
}

// remaining is the projected time left until the job arrives at target.
func (j *motionJob) remaining() time.Duration {
	d := time.Until(j.started.Add(j.travel))
	if d < 0 {
		return 0
	}
	return d
}

func (j *motionJob) stopTicker() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
}

func (j *motionJob) stop() {
	j.cancel()
	j.stopTicker()
	if j.timeout != nil {
		j.timeout.Stop()
	}
	if j.settle != nil {
		j.settle.Stop()
	}
}
