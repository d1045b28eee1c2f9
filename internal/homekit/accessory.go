package homekit

import (
	"context"

	"github.com/brutella/hc/accessory"
	"github.com/brutella/hc/characteristic"
	"github.com/brutella/hc/service"
	"github.com/jkaflik/blinds2hap/internal/blinds"
	"github.com/sirupsen/logrus"
)

// Accessory exposes blinds as a HomeKit window covering. Positions and
// motion states are passed through unchanged.
type Accessory struct {
	*accessory.Accessory
	WindowCovering *service.WindowCovering
	HoldPosition   *characteristic.HoldPosition

	ctx    context.Context
	blinds blinds.Blinds
}

func NewAccessory(ctx context.Context, b blinds.Blinds, info accessory.Info) *Accessory {
	if info.Name == "" {
		info.Name = b.Name()
	}

	acc := &Accessory{ctx: ctx, blinds: b}
	acc.Accessory = accessory.New(info, accessory.TypeWindowCovering)
	acc.WindowCovering = service.NewWindowCovering()
	acc.HoldPosition = characteristic.NewHoldPosition()
	acc.WindowCovering.AddCharacteristic(acc.HoldPosition.Characteristic)
	acc.AddService(acc.WindowCovering.Service)

	acc.WindowCovering.CurrentPosition.OnValueRemoteGet(func() int {
		pos := b.Position()
		logrus.Debugf("%s: requested current position: %d", b.Name(), pos)
		return pos
	})
	acc.WindowCovering.PositionState.OnValueRemoteGet(func() int {
		state := b.State()
		logrus.Debugf("%s: requested position state: %s", b.Name(), state)
		return int(state)
	})
	acc.WindowCovering.TargetPosition.OnValueRemoteGet(func() int {
		target := b.TargetPosition()
		logrus.Debugf("%s: requested target position: %d", b.Name(), target)
		return target
	})
	acc.WindowCovering.TargetPosition.OnValueRemoteUpdate(acc.setTargetPosition)
	acc.HoldPosition.OnValueRemoteUpdate(acc.holdPosition)

	acc.sync(b.Snapshot())
	b.OnUpdate(acc.sync)

	return acc
}

func (a *Accessory) setTargetPosition(position int) {
	if err := a.blinds.SetTargetPosition(a.ctx, position); err != nil {
		logrus.Error(err)
	}
}

func (a *Accessory) holdPosition(hold bool) {
	if !hold {
		return
	}
	if err := a.blinds.Stop(a.ctx); err != nil {
		logrus.Error(err)
	}
}

func (a *Accessory) sync(s blinds.Snapshot) {
	a.WindowCovering.CurrentPosition.SetValue(s.Position)
	a.WindowCovering.TargetPosition.SetValue(s.TargetPosition)
	a.WindowCovering.PositionState.SetValue(int(s.State))
}
