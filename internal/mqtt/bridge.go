package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/blinds2hap/internal/blinds"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	mqttOpenCmd  = "open"
	mqttCloseCmd = "close"
	mqttStopCmd  = "stop"

	stateOpen    = "open"
	stateClosed  = "closed"
	stateOpening = "opening"
	stateClosing = "closing"
	stateStopped = "stopped"

	topicRoot = "blinds2hap"
)

type Bridge struct {
	mqtt   mqtt.Client
	blinds blinds.Blinds

	StateTopic    string
	PositionTopic string
	TargetTopic   string
	MetadataTopic string

	CommandTopic        string
	PositionChangeTopic string
}

func NewBridge(mqtt mqtt.Client, b blinds.Blinds) *Bridge {
	bridge := &Bridge{mqtt: mqtt, blinds: b}
	bridge.StateTopic = fmt.Sprintf("%s/%s/state", topicRoot, b.Name())
	bridge.PositionTopic = fmt.Sprintf("%s/%s/position", topicRoot, b.Name())
	bridge.TargetTopic = fmt.Sprintf("%s/%s/target", topicRoot, b.Name())
	bridge.MetadataTopic = fmt.Sprintf("%s/%s/metadata", topicRoot, b.Name())
	bridge.CommandTopic = fmt.Sprintf("%s/%s/set", topicRoot, b.Name())
	bridge.PositionChangeTopic = fmt.Sprintf("%s/%s/position/set", topicRoot, b.Name())

	b.OnUpdate(bridge.onBlindsUpdateHandler())

	return bridge
}

// coverState maps a snapshot to a Home Assistant cover state.
func coverState(s blinds.Snapshot) string {
	switch s.State {
	case blinds.Increasing:
		return stateClosing
	case blinds.Decreasing:
		return stateOpening
	}

	switch s.Position {
	case blinds.FullOpenPosition:
		return stateOpen
	case blinds.FullClosePosition:
		return stateClosed
	}
	return stateStopped
}

func (b *Bridge) SetMetadata(value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if token := b.mqtt.Publish(b.MetadataTopic, 0, true, payload); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT metadata publish failed", b.blinds.Name())
	}

	return nil
}

// Publish sends the current state, e.g. after a broker reconnect.
func (b *Bridge) Publish() {
	b.publish(b.blinds.Snapshot())
}

func (b *Bridge) Subscribe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if token := b.mqtt.Unsubscribe(b.PositionChangeTopic, b.CommandTopic); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT topics unsubscribe failed: %s", b.blinds.Name(), token.Error())
		}
	}()

	if token := b.mqtt.Subscribe(b.CommandTopic, 0, b.onCommandHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT command topic subscription failed", b.blinds.Name())
	}
	logrus.Infof("%s: MQTT command topic subscribed", b.blinds.Name())
	if token := b.mqtt.Subscribe(b.PositionChangeTopic, 0, b.onPositionChangeHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT position change topic subscription failed", b.blinds.Name())
	}
	logrus.Infof("%s: MQTT position change topic subscribed", b.blinds.Name())

	return nil
}

func (b *Bridge) onBlindsUpdateHandler() blinds.UpdateHandler {
	return func(s blinds.Snapshot) {
		b.publish(s)
	}
}

func (b *Bridge) publish(s blinds.Snapshot) {
	if token := b.mqtt.Publish(b.StateTopic, 0, true, coverState(s)); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT state publish failed: %s", b.blinds.Name(), token.Error())
	}
	if token := b.mqtt.Publish(b.PositionTopic, 0, true, strconv.Itoa(s.Position)); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT position publish failed: %s", b.blinds.Name(), token.Error())
	}
	if token := b.mqtt.Publish(b.TargetTopic, 0, true, strconv.Itoa(s.TargetPosition)); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT target publish failed: %s", b.blinds.Name(), token.Error())
	}
}

func (b *Bridge) onCommandHandler(ctx context.Context) mqtt.MessageHandler {
	return func(c mqtt.Client, msg mqtt.Message) {
		var err error
		cmd := string(msg.Payload())
		switch cmd {
		case mqttOpenCmd:
			err = b.blinds.SetTargetPosition(ctx, blinds.FullOpenPosition)
		case mqttCloseCmd:
			err = b.blinds.SetTargetPosition(ctx, blinds.FullClosePosition)
		case mqttStopCmd:
			err = b.blinds.Stop(ctx)
		default:
			logrus.Errorf("%s: MQTT unsupported %s command received", b.blinds.Name(), cmd)
		}
		if err != nil {
			logrus.Error(err)
		}
	}
}

func (b *Bridge) onPositionChangeHandler(ctx context.Context) mqtt.MessageHandler {
	return func(c mqtt.Client, msg mqtt.Message) {
		pos, err := strconv.Atoi(string(msg.Payload()))
		if err != nil {
			logrus.Errorf("%s: MQTT invalid position %q: %s", b.blinds.Name(), msg.Payload(), err)
			return
		}
		if err := b.blinds.SetTargetPosition(ctx, pos); err != nil {
			logrus.Error(err)
		}
	}
}
