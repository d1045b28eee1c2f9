package httpcmd

import (
	"context"
	"net/http"
	"time"

	"github.com/jkaflik/blinds2hap/internal/blinds"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	commandUp     = "up"
	commandDown   = "down"
	commandStop   = "stop"
	commandStatus = "status"

	DefaultMethod          = http.MethodPost
	DefaultPollingInterval = 5 * time.Second
)

// Recorder observes command and poll outcomes.
type Recorder interface {
	CommandSent(device, command string, err error)
	StatusPolled(device, result string)
}

type nopRecorder struct{}

func (nopRecorder) CommandSent(string, string, error) {}
func (nopRecorder) StatusPolled(string, string) {}

type Options struct {
	Name string

	UpURL     string
	DownURL   string
	StopURL   string
	StatusURL string
	Method    string

	// MotionTime is the time needed to travel the full 0..100 range.
	MotionTime       time.Duration
	StopAtBoundaries bool
	PollingInterval  time.Duration

	Recorder Recorder
}

// Blinds simulates the position of a blinds controller driven by
// fire-and-forget HTTP commands.
type Blinds struct {
	opts  Options
	cmd   Commander
	store *blinds.Store

	// job is the current motion job, guarded by the store lock.
	job *motionJob
}

func NewBlinds(opts Options, cmd Commander) *Blinds {
	if opts.Method == "" {
		opts.Method = DefaultMethod
	}
	if opts.PollingInterval <= 0 {
		opts.PollingInterval = DefaultPollingInterval
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.MotionTime <= 0 {
		logrus.Warnf("%s: motion time not set, moves complete immediately", opts.Name)
	}
	if opts.StopAtBoundaries && opts.StopURL == "" {
		logrus.Warnf("%s: stop at boundaries enabled without a stop url", opts.Name)
	}

	return &Blinds{opts: opts, cmd: cmd, store: blinds.NewStore()}
}

func (b *Blinds) Name() string {
	return b.opts.Name
}

func (b *Blinds) Position() int {
	return b.store.Snapshot().Position
}

func (b *Blinds) State() blinds.MotionState {
	return b.store.Snapshot().State
}

func (b *Blinds) TargetPosition() int {
	return b.store.Snapshot().TargetPosition
}

func (b *Blinds) Snapshot() blinds.Snapshot {
	return b.store.Snapshot()
}

func (b *Blinds) OnUpdate(h blinds.UpdateHandler) {
	b.store.OnUpdate(h)
}

func (b *Blinds) stepPeriod() time.Duration {
	return b.opts.MotionTime / time.Duration(blinds.FullClosePosition-blinds.FullOpenPosition)
}

// supersede cancels the current job. Callers must hold the store lock.
func (b *Blinds) supersede() {
	if b.job == nil {
		return
	}
	logrus.Debugf("%s: found previous motion job %s, cancel", b.opts.Name, b.job.id)
	b.job.stop()
	b.job = nil
}

// SetTargetPosition acknowledges immediately; the move runs in the
// background until it arrives or a newer target supersedes it. ctx bounds
// the whole motion job, not just the call.
func (b *Blinds) SetTargetPosition(ctx context.Context, position int) error {
	if !blinds.InRange(position) {
		return errors.Errorf(
			"%s: %d is out of range open/close position (%d/%d)",
			b.opts.Name,
			position,
			blinds.FullOpenPosition,
			blinds.FullClosePosition,
		)
	}

	logrus.Infof("%s: set target position to %d", b.opts.Name, position)

	period := b.stepPeriod()
	var job *motionJob
	b.store.Update(func(st *blinds.PositionState) {
		st.TargetPosition = position
		b.supersede()

		if position == st.LastPosition {
			st.MotionState = blinds.Stopped
			return
		}

		up := position >= st.LastPosition
		if up {
			st.MotionState = blinds.Increasing
		} else {
			st.MotionState = blinds.Decreasing
		}

		distance := position - st.LastPosition
		if distance < 0 {
			distance = -distance
		}
		job = newMotionJob(ctx, position, up, period*time.Duration(distance))

		if period <= 0 {
			st.LastPosition = position
			st.MotionState = blinds.Stopped
		} else {
			job.ticker = time.NewTicker(period)
			if b.opts.StopAtBoundaries && b.opts.StopURL != "" && blinds.IsBoundary(position) {
				job.timeout = time.AfterFunc(b.opts.MotionTime, func() { b.boundaryStop(job) })
			}
		}

		b.job = job
	})

	if job == nil {
		logrus.Debugf("%s: already on a position %d", b.opts.Name, position)
		return nil
	}

	logrus.Debugf("%s: motion job %s moves %s to %d (%s)", b.opts.Name, job.id, job.direction(), position, job.travel)

	go b.move(job)
	if job.ticker != nil {
		go b.step(job)
	}

	return nil
}

// Stop cancels any motion, pins the target to the current estimate and
// sends the stop command.
func (b *Blinds) Stop(ctx context.Context) error {
	logrus.Infof("%s: stop", b.opts.Name)

	b.store.Update(func(st *blinds.PositionState) {
		b.supersede()
		st.TargetPosition = st.LastPosition
		st.MotionState = blinds.Stopped
	})

	if b.opts.StopURL == "" {
		return errors.Errorf("%s: stop url is not configured", b.opts.Name)
	}

	if _, err := b.send(ctx, commandStop, b.opts.StopURL, b.opts.Method); err != nil {
		return errors.Wrapf(err, "%s: stop command failed", b.opts.Name)
	}

	return nil
}

func (b *Blinds) move(job *motionJob) {
	url := b.opts.DownURL
	if job.up {
		url = b.opts.UpURL
	}

	if _, err := b.send(job.ctx, job.direction(), url, b.opts.Method); err != nil {
		if job.ctx.Err() != nil {
			logrus.Infof("%s: move %s to %d canceled", b.opts.Name, job.direction(), job.target)
		} else {
			logrus.Errorf("%s: move %s command error: %s", b.opts.Name, job.direction(), err)
		}
		return
	}

	logrus.Infof("%s: success moving %s (to %d)", b.opts.Name, job.direction(), job.target)

	if job.ticker == nil {
		// no travel time, the move already settled
		if !blinds.IsBoundary(job.target) && b.opts.StopURL != "" {
			b.arrivalStop(job)
		}
		return
	}

	b.store.Update(func(st *blinds.PositionState) {
		if b.job != job {
			return
		}
		job.settle = time.AfterFunc(job.remaining(), func() { b.settle(job) })
	})
}

// settle writes the final position once the controller's travel is over.
func (b *Blinds) settle(job *motionJob) {
	b.store.Update(func(st *blinds.PositionState) {
		if b.job != job || st.TargetPosition != job.target {
			return
		}
		st.LastPosition = job.target
		st.MotionState = blinds.Stopped
	})
}

func (b *Blinds) step(job *motionJob) {
	logrus.Debugf("%s: begin position calculation for job %s", b.opts.Name, job.id)

	for {
		select {
		case <-job.ctx.Done():
			logrus.Debugf("%s: exit position calculation for job %s", b.opts.Name, job.id)
			return
		case <-job.ticker.C:
		}

		var arrived, stale bool
		var target int
		b.store.Update(func(st *blinds.PositionState) {
			if b.job != job {
				stale = true
				return
			}

			switch {
			case st.LastPosition < st.TargetPosition:
				logrus.Tracef("%s: increase position", b.opts.Name)
				st.LastPosition++
			case st.LastPosition > st.TargetPosition:
				logrus.Tracef("%s: decrease position", b.opts.Name)
				st.LastPosition--
			}

			if st.LastPosition == st.TargetPosition {
				arrived = true
				target = st.TargetPosition
				st.MotionState = blinds.Stopped
				job.stopTicker()
			}
		})

		if stale {
			return
		}
		if !arrived {
			continue
		}

		logrus.Debugf("%s: position %d reached by job %s", b.opts.Name, target, job.id)
		if !blinds.IsBoundary(target) && b.opts.StopURL != "" {
			b.arrivalStop(job)
		}
		return
	}
}

func (b *Blinds) arrivalStop(job *motionJob) {
	if _, err := b.send(job.ctx, commandStop, b.opts.StopURL, b.opts.Method); err != nil {
		logrus.Errorf("%s: stop at %d failed: %s", b.opts.Name, job.target, err)
		return
	}

	logrus.Infof("%s: success stop moving %s (to %d)", b.opts.Name, job.direction(), job.target)
	b.settle(job)
}

// boundaryStop is the safety cutoff for controllers that do not stop by
// themselves at the end positions.
func (b *Blinds) boundaryStop(job *motionJob) {
	if job.ctx.Err() != nil {
		return
	}

	if _, err := b.send(job.ctx, commandStop, b.opts.StopURL, b.opts.Method); err != nil {
		logrus.Errorf("%s: boundary stop at %d failed: %s", b.opts.Name, job.target, err)
		return
	}

	logrus.Infof("%s: success stop adjusting moving %s (to %d)", b.opts.Name, job.direction(), job.target)
}

func (b *Blinds) send(ctx context.Context, command, url, method string) ([]byte, error) {
	body, err := b.cmd.Send(ctx, url, method)
	b.opts.Recorder.CommandSent(b.opts.Name, command, err)
	return body, err
}
