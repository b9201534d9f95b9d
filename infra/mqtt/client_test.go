package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/roaming"
)

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// mockClient implements pahoClient for tests.
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	published  []published
	publishErr error
	handler    paho.MessageHandler

	// respond is invoked synchronously for every publish, letting tests
	// answer a request before the caller starts waiting.
	respond func(p published)
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(nil)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	p := published{topic, qos, payload.([]byte)}
	m.published = append(m.published, p)
	if m.respond != nil {
		m.respond(p)
	}
	return &dummyToken{err: m.publishErr}
}
func (m *mockClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	m.handler = cb
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}

func newMockedClient(t *testing.T, cfg Config) (*Client, *mockClient) {
	t.Helper()
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
	cli, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return cli, mc
}

func TestSubscribesToResponses(t *testing.T) {
	_, mc := newMockedClient(t, Config{Broker: "tcp://localhost:1883", QoS: map[string]byte{"response": 1}})
	if len(mc.subscribed) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(mc.subscribed))
	}
	if mc.subscribed[0].topic != "cso/roaming/responses" || mc.subscribed[0].qos != 1 {
		t.Fatalf("subscribed to %s qos %d", mc.subscribed[0].topic, mc.subscribed[0].qos)
	}
}

func TestReserveRoundTrip(t *testing.T) {
	cli, mc := newMockedClient(t, Config{Broker: "tcp://localhost:1883"})
	mc.respond = func(p published) {
		var env envelope
		if err := json.Unmarshal(p.payload, &env); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		result, _ := json.Marshal(roaming.ReserveResult{
			Code:        model.ResultSuccess,
			Reservation: &model.Reservation{ID: "r1", EVSEID: "evse1"},
		})
		reply, _ := json.Marshal(envelope{TrackingID: env.TrackingID, Verb: env.Verb, Payload: result})
		mc.handler(nil, mockMessage{reply})
	}

	res, err := cli.Reserve(context.Background(), roaming.ReserveRequest{
		EVSEID:     "evse1",
		TrackingID: "t1",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res == nil || res.Code != model.ResultSuccess || res.Reservation.ID != "r1" {
		t.Fatalf("result = %+v", res)
	}
	if mc.published[0].topic != "cso/roaming/requests/reserve" {
		t.Fatalf("request topic = %s", mc.published[0].topic)
	}
	var env envelope
	if err := json.Unmarshal(mc.published[0].payload, &env); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if env.TrackingID != "t1" || env.Verb != "reserve" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestRequestTimeoutMeansNoAnswer(t *testing.T) {
	cli, _ := newMockedClient(t, Config{Broker: "tcp://localhost:1883"})

	res, err := cli.RemoteStop(context.Background(), roaming.RemoteStopRequest{
		SessionID:  "s1",
		TrackingID: "t2",
		Timeout:    10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if res != nil {
		t.Fatalf("res = %+v, want nil on timeout", res)
	}
}

func TestPublishFailureIsAnError(t *testing.T) {
	cli, mc := newMockedClient(t, Config{Broker: "tcp://localhost:1883"})
	mc.publishErr = errTest

	_, err := cli.CancelReservation(context.Background(), roaming.CancelReservationRequest{
		ReservationID: "r1",
		TrackingID:    "t3",
		Timeout:       time.Second,
	})
	if err == nil {
		t.Fatal("publish failure swallowed")
	}
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "publish failed" }
