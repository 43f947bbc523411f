package session

import (
	"github.com/virtualchime/chime-core/internal/infrastructure/mqtt"
)

// Broker is the client handle the Manager drives. Every method returns
// immediately; outcomes arrive through the mqtt.EventHandler given to the
// Dialer.
type Broker interface {
	// Connect issues a connect request. It returns false if the request
	// could not be issued at all.
	Connect() bool
	Disconnect()
	Subscribe(topic string, qos byte)
	Unsubscribe(topic string)
	Publish(topic string, payload []byte, qos byte)
}

// Dialer builds a Broker for one generation of the session.
type Dialer func(opts mqtt.Options, handler mqtt.EventHandler) Broker

// PahoDialer returns a Dialer backed by the Paho MQTT client.
func PahoDialer(logger mqtt.Logger) Dialer {
	return func(opts mqtt.Options, handler mqtt.EventHandler) Broker {
		client := mqtt.NewClient(opts, handler)
		if logger != nil {
			client.SetLogger(logger)
		}
		return client
	}
}

// binding routes one client's events to the Manager, tagged with the
// generation the client was created for.
type binding struct {
	m   *Manager
	gen uint64
}

var _ mqtt.EventHandler = binding{}

func (b binding) OnConnectAck(accepted bool) {
	b.m.onConnectAck(b.gen, accepted)
}

func (b binding) OnSubscribeAck(topics []string) {
	b.m.onSubscribeAck(b.gen, topics)
}

func (b binding) OnUnsubscribeAck(topics []string) {
	b.m.onUnsubscribeAck(b.gen, topics)
}

func (b binding) OnMessage(topic string, payload []byte) {
	b.m.onMessage(b.gen, topic, payload)
}

func (b binding) OnPublishAck(id uint16) {
	b.m.onPublishAck(b.gen, id)
}

func (b binding) OnPing() {
	b.m.onKeepAlive(b.gen, "ping")
}

func (b binding) OnPong() {
	b.m.onKeepAlive(b.gen, "pong")
}

func (b binding) OnDisconnect(err error) {
	b.m.onDisconnect(b.gen, err)
}
