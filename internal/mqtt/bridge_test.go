package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/blinds2hap/internal/blinds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	paho.Token
}

func (doneToken) Wait() bool { return true }
func (doneToken) Error() error { return nil }

type published struct {
	topic    string
	retained bool
	payload  interface{}
}

type fakeClient struct {
	paho.Client

	mu         sync.Mutex
	published  []published
	subscribed map[string]paho.MessageHandler
}

func newFakeClient() *fakeClient {
	return &fakeClient{subscribed: map[string]paho.MessageHandler{}}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, retained: retained, payload: payload})
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed[topic] = callback
	return doneToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.subscribed, topic)
	}
	return doneToken{}
}

func (c *fakeClient) last(topic string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.published) - 1; i >= 0; i-- {
		if c.published[i].topic == topic {
			return c.published[i].payload, true
		}
	}
	return nil, false
}

func (c *fakeClient) handler(topic string) paho.MessageHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed[topic]
}

type fakeMessage struct {
	paho.Message

	payload []byte
}

func (m fakeMessage) Payload() []byte { return m.payload }

type fakeBlinds struct {
	blinds.Blinds

	store   *blinds.Store
	mu      sync.Mutex
	targets []int
	stops   int
}

func newFakeBlinds() *fakeBlinds {
	return &fakeBlinds{store: blinds.NewStore()}
}

func (b *fakeBlinds) Name() string { return "salon" }
func (b *fakeBlinds) Snapshot() blinds.Snapshot { return b.store.Snapshot() }
func (b *fakeBlinds) OnUpdate(h blinds.UpdateHandler) { b.store.OnUpdate(h) }

func (b *fakeBlinds) SetTargetPosition(_ context.Context, position int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets = append(b.targets, position)
	return nil
}

func (b *fakeBlinds) Stop(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
	return nil
}

func TestNewBridgeTopics(t *testing.T) {
	bridge := NewBridge(newFakeClient(), newFakeBlinds())

	assert.Equal(t, "blinds2hap/salon/state", bridge.StateTopic)
	assert.Equal(t, "blinds2hap/salon/position", bridge.PositionTopic)
	assert.Equal(t, "blinds2hap/salon/target", bridge.TargetTopic)
	assert.Equal(t, "blinds2hap/salon/set", bridge.CommandTopic)
	assert.Equal(t, "blinds2hap/salon/position/set", bridge.PositionChangeTopic)
}

func TestCoverState(t *testing.T) {
	tests := []struct {
		snap  blinds.Snapshot
		state string
	}{
		{blinds.Snapshot{Position: 0, State: blinds.Stopped}, stateOpen},
		{blinds.Snapshot{Position: 100, State: blinds.Stopped}, stateClosed},
		{blinds.Snapshot{Position: 40, State: blinds.Stopped}, stateStopped},
		{blinds.Snapshot{Position: 40, State: blinds.Increasing}, stateClosing},
		{blinds.Snapshot{Position: 100, State: blinds.Decreasing}, stateOpening},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.state, coverState(tt.snap), "%+v", tt.snap)
	}
}

func TestBridgeSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeClient()
	b := newFakeBlinds()
	bridge := NewBridge(client, b)
	require.NoError(t, bridge.Subscribe(ctx))

	t.Run("commands", func(t *testing.T) {
		handler := client.handler(bridge.CommandTopic)
		require.NotNil(t, handler)

		handler(client, fakeMessage{payload: []byte("close")})
		handler(client, fakeMessage{payload: []byte("open")})
		handler(client, fakeMessage{payload: []byte("stop")})
		handler(client, fakeMessage{payload: []byte("dance")})

		assert.Equal(t, []int{100, 0}, b.targets)
		assert.Equal(t, 1, b.stops)
	})

	t.Run("position change", func(t *testing.T) {
		handler := client.handler(bridge.PositionChangeTopic)
		require.NotNil(t, handler)

		handler(client, fakeMessage{payload: []byte("42")})
		handler(client, fakeMessage{payload: []byte("half")})

		assert.Equal(t, []int{100, 0, 42}, b.targets)
	})

	t.Run("unsubscribes on context done", func(t *testing.T) {
		cancel()
		assert.Eventually(t, func() bool {
			return client.handler(bridge.CommandTopic) == nil && client.handler(bridge.PositionChangeTopic) == nil
		}, time.Second, time.Millisecond)
	})
}

func TestBridgePublishesUpdates(t *testing.T) {
	client := newFakeClient()
	b := newFakeBlinds()
	bridge := NewBridge(client, b)

	b.store.Update(func(st *blinds.PositionState) {
		st.LastPosition = 12
		st.TargetPosition = 70
		st.MotionState = blinds.Increasing
	})

	assert.Eventually(t, func() bool {
		target, ok := client.last(bridge.TargetTopic)
		return ok && target == "70"
	}, time.Second, time.Millisecond)

	state, _ := client.last(bridge.StateTopic)
	position, _ := client.last(bridge.PositionTopic)
	assert.Equal(t, stateClosing, state)
	assert.Equal(t, "12", position)
}

func TestPublishHAAutoDiscovery(t *testing.T) {
	client := newFakeClient()
	bridge := NewBridge(client, newFakeBlinds())

	require.NoError(t, PublishHAAutoDiscovery(client, "homeassistant", NewHACoverFromMQTTBridge(bridge)))

	payload, ok := client.last("homeassistant/cover/blinds2hap/salon/config")
	require.True(t, ok)

	var cover map[string]interface{}
	require.NoError(t, json.Unmarshal(payload.([]byte), &cover))
	assert.Equal(t, bridge.StateTopic, cover["stat_t"])
	assert.Equal(t, bridge.PositionChangeTopic, cover["set_pos_t"])
	assert.Equal(t, float64(0), cover["pos_open"])
	assert.Equal(t, float64(100), cover["pos_clsd"])
	assert.Equal(t, "blind", cover["device_class"])
}
