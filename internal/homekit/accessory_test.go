package homekit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brutella/hc/accessory"
	"github.com/brutella/hc/characteristic"
	"github.com/jkaflik/blinds2hap/internal/blinds"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeBlinds struct {
	blinds.Blinds

	store *blinds.Store

	mu      sync.Mutex
	targets []int
	stops   int
	err     error
}

func newFakeBlinds() *fakeBlinds {
	return &fakeBlinds{store: blinds.NewStore()}
}

func (b *fakeBlinds) Name() string {
	return "salon"
}

func (b *fakeBlinds) Position() int {
	return b.store.Snapshot().Position
}

func (b *fakeBlinds) State() blinds.MotionState {
	return b.store.Snapshot().State
}

func (b *fakeBlinds) TargetPosition() int {
	return b.store.Snapshot().TargetPosition
}

func (b *fakeBlinds) Snapshot() blinds.Snapshot {
	return b.store.Snapshot()
}

func (b *fakeBlinds) OnUpdate(h blinds.UpdateHandler) {
	b.store.OnUpdate(h)
}

func (b *fakeBlinds) SetTargetPosition(_ context.Context, position int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets = append(b.targets, position)
	return b.err
}

func (b *fakeBlinds) Stop(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
	return b.err
}

func TestNewAccessory(t *testing.T) {
	b := newFakeBlinds()
	acc := NewAccessory(context.Background(), b, accessory.Info{Manufacturer: "blinds2hap"})

	assert.Equal(t, "salon", acc.Info.Name.GetValue())
	assert.Equal(t, 0, acc.WindowCovering.CurrentPosition.GetValue())
	assert.Equal(t, 0, acc.WindowCovering.TargetPosition.GetValue())
	assert.Equal(t, characteristic.PositionStateStopped, acc.WindowCovering.PositionState.GetValue())
}

func TestAccessoryFollowsBlinds(t *testing.T) {
	b := newFakeBlinds()
	acc := NewAccessory(context.Background(), b, accessory.Info{})

	b.store.Update(func(st *blinds.PositionState) {
		st.LastPosition = 25
		st.TargetPosition = 90
		st.MotionState = blinds.Increasing
	})

	assert.Eventually(t, func() bool {
		return acc.WindowCovering.PositionState.GetValue() == characteristic.PositionStateIncreasing
	}, time.Second, time.Millisecond)
	assert.Equal(t, 25, acc.WindowCovering.CurrentPosition.GetValue())
	assert.Equal(t, 90, acc.WindowCovering.TargetPosition.GetValue())
}

func TestAccessoryCommands(t *testing.T) {
	b := newFakeBlinds()
	acc := NewAccessory(context.Background(), b, accessory.Info{})

	acc.setTargetPosition(60)
	acc.holdPosition(false)
	acc.holdPosition(true)

	assert.Equal(t, []int{60}, b.targets)
	assert.Equal(t, 1, b.stops)

	b.err = errors.New("boom")
	acc.setTargetPosition(101)
	assert.Equal(t, []int{60, 101}, b.targets)
}
