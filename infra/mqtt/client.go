// Package mqtt implements the roaming-partner transport and the flush
// delivery over an MQTT broker using Eclipse Paho.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/voltmesh/cso/core/roaming"
	"github.com/voltmesh/cso/infra/logger"
)

// pahoClient is the subset of the Paho API the client needs, extracted
// for testability.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// envelope is the wire frame shared by requests and responses. Responses
// are correlated to the waiting caller through the tracking id.
type envelope struct {
	TrackingID string          `json:"tracking_id"`
	Verb       string          `json:"verb"`
	Payload    json.RawMessage `json:"payload"`
}

// Client implements roaming.RemoteOperator over MQTT. Requests go out on
// <prefix>/requests/<verb>; the partner answers on <prefix>/responses
// with the same tracking id. A request that gets no answer within its
// timeout returns a nil result, which the dispatcher treats as "no
// answer" and handles locally.
type Client struct {
	raw pahoClient
	cfg Config
	log logger.Logger

	mu    sync.Mutex
	reply map[string]chan envelope
}

var _ roaming.RemoteOperator = (*Client)(nil)

// NewClient connects to the MQTT broker and subscribes to the response
// topic.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_roaming")
	c := &Client{
		cfg:   cfg,
		log:   log,
		reply: make(map[string]chan envelope),
	}

	opts.OnConnect = func(_ paho.Client) {
		log.Infof("MQTT connected")
		topic := cfg.TopicPrefix + "/responses"
		if token := c.raw.Subscribe(topic, cfg.qosFor("response"), c.onResponse); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c.raw = newMQTTClient(opts)
	if token := c.raw.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

func (c *Client) onResponse(_ paho.Client, msg paho.Message) {
	var env envelope
	if err := json.Unmarshal(msg.Payload(), &env); err != nil {
		c.log.Errorf("failed to decode response: %v", err)
		return
	}
	c.mu.Lock()
	ch, ok := c.reply[env.TrackingID]
	c.mu.Unlock()
	if !ok {
		c.log.Debugf("unmatched response %s for %s", env.Verb, env.TrackingID)
		return
	}
	select {
	case ch <- env:
	default:
	}
}

// Publish sends a raw payload on the given topic with the data QoS.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.raw.Publish(topic, c.cfg.qosFor("data"), false, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Disconnect gracefully closes the MQTT connection.
func (c *Client) Disconnect() {
	if c.raw != nil {
		c.raw.Disconnect(250)
	}
}

// request publishes a verb request and waits for the correlated
// response. A timeout yields (nil, nil); transport failures yield an
// error.
func request[Res any](ctx context.Context, c *Client, verb, trackingID string, timeout time.Duration, req any) (*Res, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("mqtt: encode %s request: %w", verb, err)
	}
	frame, err := json.Marshal(envelope{TrackingID: trackingID, Verb: verb, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("mqtt: encode %s envelope: %w", verb, err)
	}

	ch := make(chan envelope, 1)
	c.mu.Lock()
	c.reply[trackingID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.reply, trackingID)
		c.mu.Unlock()
	}()

	topic := c.cfg.TopicPrefix + "/requests/" + verb
	if token := c.raw.Publish(topic, c.cfg.qosFor("request"), false, frame); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: publish %s: %w", verb, token.Error())
	}

	if timeout <= 0 {
		timeout = c.cfg.requestTimeout()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		c.log.Warnf("%s %s: no response within %s", verb, trackingID, timeout)
		return nil, nil
	case resp := <-ch:
		var out Res
		if err := json.Unmarshal(resp.Payload, &out); err != nil {
			return nil, fmt.Errorf("mqtt: decode %s response: %w", verb, err)
		}
		return &out, nil
	}
}

// Reserve forwards a reservation request to the roaming partner.
func (c *Client) Reserve(ctx context.Context, req roaming.ReserveRequest) (*roaming.ReserveResult, error) {
	return request[roaming.ReserveResult](ctx, c, "reserve", req.TrackingID, req.Timeout, req)
}

// RemoteStart forwards a session start request to the roaming partner.
func (c *Client) RemoteStart(ctx context.Context, req roaming.RemoteStartRequest) (*roaming.RemoteStartResult, error) {
	return request[roaming.RemoteStartResult](ctx, c, "remote_start", req.TrackingID, req.Timeout, req)
}

// RemoteStop forwards a session stop request to the roaming partner.
func (c *Client) RemoteStop(ctx context.Context, req roaming.RemoteStopRequest) (*roaming.RemoteStopResult, error) {
	return request[roaming.RemoteStopResult](ctx, c, "remote_stop", req.TrackingID, req.Timeout, req)
}

// CancelReservation forwards a cancellation to the roaming partner.
func (c *Client) CancelReservation(ctx context.Context, req roaming.CancelReservationRequest) (*roaming.CancelReservationResult, error) {
	return request[roaming.CancelReservationResult](ctx, c, "cancel_reservation", req.TrackingID, req.Timeout, req)
}
