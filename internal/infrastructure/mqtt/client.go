package mqtt

import (
	"errors"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

// Client adapts paho.mqtt.golang to the EventHandler callback model.
//
// Every operation returns immediately. Its outcome is reported later
// through the EventHandler: connect acknowledgements, subscribe and
// unsubscribe acknowledgements, publish completions, received messages
// and disconnects. Failures that the broker protocol has no event for
// (a rejected subscribe, a failed publish) are logged.
//
// paho answers keep-alive pings internally and exposes no hook for them,
// so this adapter never calls OnPing or OnPong.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	opts    Options
	handler EventHandler

	// client is nil when the options could not form a broker URL.
	client pahomqtt.Client

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// subackFailure is the SUBACK return code for a refused subscription.
const subackFailure = 0x80

// pahoFactory builds the underlying paho client; replaced in tests.
type pahoFactory func(*pahomqtt.ClientOptions) pahomqtt.Client

// NewClient creates a client for one broker session. It does not connect.
//
// Parameters:
//   - opts: Session options (client id, host, credentials, will, keep-alive)
//   - handler: Receiver for lifecycle events
//
// Returns:
//   - *Client: Unconnected client; Connect reports false if opts has no
//     usable broker address
func NewClient(opts Options, handler EventHandler) *Client {
	return newClient(opts, handler, pahomqtt.NewClient)
}

func newClient(opts Options, handler EventHandler, factory pahoFactory) *Client {
	c := &Client{
		opts:    opts,
		handler: handler,
	}

	brokerURL, err := opts.BrokerURL()
	if err != nil {
		return c
	}

	pahoOpts := buildClientOptions(opts, brokerURL)

	pahoOpts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.debug("MQTT connected", "broker", brokerURL)
		c.handler.OnConnectAck(true)
	})

	pahoOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handler.OnDisconnect(err)
	})

	pahoOpts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if logger := c.getLogger(); logger != nil {
			logger.Info("MQTT reconnecting", "broker", brokerURL)
		}
	})

	pahoOpts.SetDefaultPublishHandler(c.messageHandler())

	c.client = factory(pahoOpts)
	return c
}

// Connect starts an asynchronous connect.
//
// Returns false when the request could not be issued at all (no usable
// broker address). Otherwise the result arrives as OnConnectAck(true),
// OnConnectAck(false) for a broker refusal, or OnDisconnect(err) for a
// transport failure.
func (c *Client) Connect() bool {
	if c.client == nil {
		if logger := c.getLogger(); logger != nil {
			_, err := c.opts.BrokerURL()
			logger.Warn("MQTT connect not attempted", "error", err)
		}
		return false
	}

	token := c.client.Connect()
	go func() {
		<-token.Done()
		err := token.Error()
		if err == nil {
			// OnConnectHandler reports the accepted ack.
			return
		}
		if isRefused(err) {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT connect refused", "error", err)
			}
			c.handler.OnConnectAck(false)
			return
		}
		c.handler.OnDisconnect(err)
	}()
	return true
}

// Disconnect closes the session and reports OnDisconnect(nil).
func (c *Client) Disconnect() {
	if c.client != nil {
		c.client.Disconnect(defaultDisconnectQuiesce)
	}
	c.handler.OnDisconnect(nil)
}

// Subscribe requests a subscription; success is reported via OnSubscribeAck.
func (c *Client) Subscribe(topic string, qos byte) {
	if err := c.validate(topic, qos, ValidateTopicFilter); err != nil {
		c.warn("MQTT subscribe rejected", "topic", topic, "error", err)
		return
	}

	token := c.client.Subscribe(topic, qos, c.messageHandler())
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.warn("MQTT subscribe failed", "topic", topic, "error", err)
			return
		}
		if st, ok := token.(*pahomqtt.SubscribeToken); ok {
			if granted, found := st.Result()[topic]; found && granted == subackFailure {
				c.warn("MQTT subscribe refused by broker", "topic", topic)
				return
			}
		}
		c.handler.OnSubscribeAck([]string{topic})
	}()
}

// Unsubscribe requests unsubscription; success is reported via OnUnsubscribeAck.
func (c *Client) Unsubscribe(topic string) {
	if err := c.validate(topic, 0, ValidateTopicFilter); err != nil {
		c.warn("MQTT unsubscribe rejected", "topic", topic, "error", err)
		return
	}

	token := c.client.Unsubscribe(topic)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.warn("MQTT unsubscribe failed", "topic", topic, "error", err)
			return
		}
		c.handler.OnUnsubscribeAck([]string{topic})
	}()
}

// Publish sends payload on topic; completion is reported via OnPublishAck.
func (c *Client) Publish(topic string, payload []byte, qos byte) {
	if err := c.validate(topic, qos, ValidatePublishTopic); err != nil {
		c.warn("MQTT publish rejected", "topic", topic, "error", err)
		return
	}
	if len(payload) > maxPayloadSize {
		c.warn("MQTT publish rejected", "topic", topic, "error", ErrPayloadTooLarge, "size", len(payload))
		return
	}

	token := c.client.Publish(topic, qos, false, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.warn("MQTT publish failed", "topic", topic, "error", err)
			return
		}
		var id uint16
		if pt, ok := token.(interface{ MessageID() uint16 }); ok {
			id = pt.MessageID()
		}
		c.handler.OnPublishAck(id)
	}()
}

// IsConnected reports whether paho considers the connection up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// SetLogger sets a logger for adapter diagnostics.
// If not set, failures without an event are silently dropped.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) warn(msg string, args ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn(msg, args...)
	}
}

func (c *Client) debug(msg string, args ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Debug(msg, args...)
	}
}

func (c *Client) validate(topic string, qos byte, checkTopic func(string) error) error {
	if c.client == nil {
		return ErrInvalidBroker
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return checkTopic(topic)
}

// messageHandler forwards messages to the EventHandler with panic recovery.
func (c *Client) messageHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		c.handler.OnMessage(msg.Topic(), msg.Payload())
	}
}

// isRefused reports whether a connect error is a CONNACK refusal.
func isRefused(err error) bool {
	for _, refused := range []error{
		packets.ErrorRefusedBadProtocolVersion,
		packets.ErrorRefusedIDRejected,
		packets.ErrorRefusedServerUnavailable,
		packets.ErrorRefusedBadUsernameOrPassword,
		packets.ErrorRefusedNotAuthorised,
	} {
		if errors.Is(err, refused) {
			return true
		}
	}
	return false
}
