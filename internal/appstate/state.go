package appstate

// ConnectionState is the broker connection state of the session.
type ConnectionState int

// Connection states. The zero value is Disconnected.
const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	ConnectedSubscribed
	ConnectedUnsubscribed
)

// String returns the human-readable description shown to users.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case ConnectedSubscribed:
		return "Subscribed"
	case ConnectedUnsubscribed:
		return "Connected, not subscribed"
	default:
		return "Unknown"
	}
}

// Name returns a stable machine-readable identifier for the state.
func (s ConnectionState) Name() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ConnectedSubscribed:
		return "connected_subscribed"
	case ConnectedUnsubscribed:
		return "connected_unsubscribed"
	default:
		return "unknown"
	}
}

// IsConnected reports whether a broker connection is established.
func (s ConnectionState) IsConnected() bool {
	return s == Connected || s == ConnectedSubscribed || s == ConnectedUnsubscribed
}

// IsSubscribed reports whether the subscription is confirmed.
func (s ConnectionState) IsSubscribed() bool {
	return s == ConnectedSubscribed
}

// MarshalText encodes the state as its Name.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.Name()), nil
}
