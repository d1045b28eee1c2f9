package httpcmd

import (
	"context"
	"net/http"
	"time"

	"github.com/jkaflik/blinds2hap/internal/blinds"
	"github.com/sirupsen/logrus"
)

const (
	PollOK        = "ok"
	PollTimeout   = "timeout"
	PollError     = "error"
	PollMalformed = "malformed"
	PollIgnored   = "ignored"
)

// Run polls the status url until ctx is done. Without a status url it
// returns immediately.
func (b *Blinds) Run(ctx context.Context) {
	if b.opts.StatusURL == "" {
		logrus.Debugf("%s: no status url, polling disabled", b.opts.Name)
		return
	}

	logrus.Infof("%s: polling status every %s", b.opts.Name, b.opts.PollingInterval)

	// a sample slower than the interval makes the ticker drop ticks, so
	// the next one starts at most one interval late
	t := time.NewTicker(b.opts.PollingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logrus.Debugf("%s: exit status polling", b.opts.Name)
			return
		case <-t.C:
			b.Poll(ctx)
		}
	}
}

// Poll takes a single status sample and reconciles the position state
// with it. It returns the outcome label.
func (b *Blinds) Poll(ctx context.Context) string {
	result := b.poll(ctx)
	b.opts.Recorder.StatusPolled(b.opts.Name, result)
	return result
}

func (b *Blinds) poll(ctx context.Context) string {
	body, err := b.send(ctx, commandStatus, b.opts.StatusURL, http.MethodGet)
	if err != nil {
		if IsTimeout(err) {
			// Heuristic: simple relay controllers tend to hold the status
			// request while the motor runs, so a timeout is read as
			// "still moving" rather than as a failure.
			snap := b.store.Update(func(st *blinds.PositionState) {
				if st.TargetPosition >= st.LastPosition {
					st.MotionState = blinds.Increasing
				} else {
					st.MotionState = blinds.Decreasing
				}
			})
			logrus.Infof("%s: status timed out, blinds are %s", b.opts.Name, snap.State)
			return PollTimeout
		}

		logrus.Errorf("%s: status poll failed: %s", b.opts.Name, err)
		return PollError
	}

	status, err := ParseStatus(body)
	if err != nil {
		logrus.Warnf("%s: status poll: %s", b.opts.Name, err)
		return PollMalformed
	}

	position, ok := status.Position()
	if !ok {
		logrus.Debugf("%s: status %q ignored", b.opts.Name, body)
		return PollIgnored
	}

	b.store.Update(func(st *blinds.PositionState) {
		st.TargetPosition = position
		st.LastPosition = position
		st.MotionState = blinds.Stopped
	})
	logrus.Debugf("%s: setting current position from status: %d", b.opts.Name, position)

	return PollOK
}
