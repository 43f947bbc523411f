package mqtt

// EventHandler receives broker session lifecycle events.
//
// Methods are called from paho goroutines and may run concurrently with
// each other; implementations must be safe for concurrent use and return
// quickly.
type EventHandler interface {
	// OnConnectAck reports the broker's answer to a connect request.
	OnConnectAck(accepted bool)

	// OnSubscribeAck reports topics whose subscription was acknowledged.
	OnSubscribeAck(topics []string)

	// OnUnsubscribeAck reports topics whose unsubscription was acknowledged.
	OnUnsubscribeAck(topics []string)

	// OnMessage delivers a received application message.
	OnMessage(topic string, payload []byte)

	// OnPublishAck reports completion of an outgoing publish.
	OnPublishAck(id uint16)

	// OnPing and OnPong report keep-alive traffic.
	OnPing()
	OnPong()

	// OnDisconnect reports the end of the session. err is nil for a
	// requested disconnect.
	OnDisconnect(err error)
}
