package mqtt

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/virtualchime/chime-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// DefaultPort is the plain-TCP MQTT port.
	DefaultPort = 1883

	// defaultKeepAlive is used when Options.KeepAlive is zero.
	defaultKeepAlive = 60 * time.Second

	// defaultConnectTimeout bounds the TCP/CONNECT handshake inside paho.
	defaultConnectTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// maxPayloadSize caps outgoing payloads (1MB).
	maxPayloadSize = 1 << 20
)

// Message is a fixed topic/payload pair such as the last will.
type Message struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

// Options describes one broker session.
type Options struct {
	// ClientID is sent to the broker verbatim; see ClientID().
	ClientID string
	Host     string
	Port     int

	// Username and Password are applied only when Username is non-empty.
	Username string
	Password string

	KeepAlive      time.Duration
	ConnectTimeout time.Duration

	// AutoReconnect hands reconnection to paho after a lost connection.
	AutoReconnect bool

	// Will is registered as the last will when its Topic is set.
	Will Message
}

// BaseOptions returns the options shared by every session built from cfg:
// port, keep-alive, reconnect policy and last will. Callers fill in the
// client id, host and credentials.
func BaseOptions(cfg config.MQTTConfig) Options {
	return Options{
		Port:           cfg.Broker.Port,
		KeepAlive:      time.Duration(cfg.KeepAlive) * time.Second,
		ConnectTimeout: time.Duration(cfg.ConnectTimeout) * time.Second,
		AutoReconnect:  cfg.AutoReconnect,
		Will: Message{
			Topic:   cfg.Will.Topic,
			Payload: cfg.Will.Payload,
			QoS:     byte(cfg.QoS),
		},
	}
}

// ClientID builds a client identifier unique per process:
// "<prefix>-<identifier>-<pid>". An empty prefix is omitted.
func ClientID(prefix, identifier string, pid int) string {
	if prefix == "" {
		return fmt.Sprintf("%s-%d", identifier, pid)
	}
	return fmt.Sprintf("%s-%s-%d", prefix, identifier, pid)
}

// BrokerURL returns the tcp:// URL for the configured host and port.
//
// Returns:
//   - string: Broker URL (e.g., "tcp://broker.local:1883")
//   - error: ErrInvalidBroker if the host is empty or malformed
func (o Options) BrokerURL() (string, error) {
	host := strings.TrimSpace(o.Host)
	if host == "" {
		return "", fmt.Errorf("%w: host is empty", ErrInvalidBroker)
	}
	if strings.ContainsAny(host, " /?#@") {
		return "", fmt.Errorf("%w: host %q", ErrInvalidBroker, o.Host)
	}
	host = strings.Trim(host, "[]")
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("%w: host %q", ErrInvalidBroker, o.Host)
	}

	port := o.Port
	if port == 0 {
		port = DefaultPort
	}
	if port < 1 || port > 65535 {
		return "", fmt.Errorf("%w: port %d", ErrInvalidBroker, port)
	}

	raw := "tcp://" + net.JoinHostPort(host, strconv.Itoa(port))
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: host %q", ErrInvalidBroker, o.Host)
	}
	return raw, nil
}

// buildClientOptions creates paho MQTT options.
//
// This configures:
//   - Broker URL (tcp://host:port)
//   - Client ID for identification
//   - Authentication credentials (if a username is provided)
//   - Last will, keep-alive and clean session
//   - No connect retry: a failed connect is reported once
func buildClientOptions(o Options, brokerURL string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(o.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(o.AutoReconnect)
	opts.SetConnectRetry(false)

	connectTimeout := o.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(connectTimeout)

	keepAlive := o.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	if o.Will.Topic != "" {
		opts.SetWill(o.Will.Topic, o.Will.Payload, o.Will.QoS, o.Will.Retained)
	}

	return opts
}
