package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/virtualchime/chime-core/internal/appstate"
	"github.com/virtualchime/chime-core/internal/infrastructure/config"
	"github.com/virtualchime/chime-core/internal/infrastructure/mqtt"
	"github.com/virtualchime/chime-core/internal/settings"
)

// Logger interface for session logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config is the broker session configuration.
type Config struct {
	// Identifier is the client identity; the id sent to the broker is
	// "<prefix>-<Identifier>-<pid>". Empty means mqtt.broker.client_id.
	Identifier string
	Host       string

	// Username and Password are applied together, only when Username is set.
	Username string
	Password string
}

// Deps are the Manager's dependencies.
type Deps struct {
	// MQTT supplies the fixed session parameters: port, QoS, keep-alive,
	// last will, status message and client id prefix.
	MQTT config.MQTTConfig

	Dialer Dialer
	Store  settings.Store
	Model  *appstate.Model
	Logger Logger

	// PID overrides the process id used in client ids. Zero means os.Getpid().
	PID int
}

// eventQueueSize buffers events while the loop is busy.
const eventQueueSize = 64

// Manager owns the broker session and its observable state.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Model observers run on the event loop and must not call mutating methods.
type Manager struct {
	mqttCfg config.MQTTConfig
	dial    Dialer
	store   settings.Store
	model   *appstate.Model
	logger  Logger
	pid     int

	// mu guards the session configuration and client handle.
	mu     sync.RWMutex
	cfg    Config
	topic  string
	broker Broker
	gen    uint64

	events    chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New creates a Manager in the Disconnected state and loads any stored
// settings. A settings load failure is logged, not returned.
//
// Returns:
//   - *Manager: Running manager; call Close to stop it
//   - error: If a required dependency is missing
func New(deps Deps) (*Manager, error) {
	if deps.Dialer == nil {
		return nil, fmt.Errorf("dialer is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if deps.Model == nil {
		return nil, fmt.Errorf("state model is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	pid := deps.PID
	if pid == 0 {
		pid = os.Getpid()
	}

	m := &Manager{
		mqttCfg: deps.MQTT,
		dial:    deps.Dialer,
		store:   deps.Store,
		model:   deps.Model,
		logger:  deps.Logger,
		pid:     pid,
		events:  make(chan func(), eventQueueSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go m.loop()

	if err := m.LoadSettings(context.Background()); err != nil {
		m.logger.Error("failed to load broker settings", "error", err)
	}

	return m, nil
}

// =============================================================================
// Event loop
// =============================================================================

func (m *Manager) loop() {
	defer close(m.stopped)
	for {
		select {
		case fn := <-m.events:
			fn()
		case <-m.quit:
			return
		}
	}
}

// do runs fn on the event loop and waits for it. After Close it returns
// without running fn.
func (m *Manager) do(fn func()) {
	done := make(chan struct{})
	select {
	case m.events <- func() { fn(); close(done) }:
	case <-m.quit:
		return
	}
	select {
	case <-done:
	case <-m.quit:
	}
}

// handle runs fn on the event loop if gen is still the current
// generation, reporting whether it ran.
func (m *Manager) handle(gen uint64, fn func()) bool {
	applied := false
	m.do(func() {
		if m.generation() != gen {
			return
		}
		fn()
		applied = true
	})
	return applied
}

func (m *Manager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// current returns the client handle and its generation.
func (m *Manager) current() (Broker, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.broker, m.gen
}

// =============================================================================
// Operations
// =============================================================================

// Configure replaces the broker client. The previous client, if any, is
// disconnected and its further events are ignored. The new configuration
// is saved to the settings store; a save failure is logged. Configure
// does not connect.
func (m *Manager) Configure(ctx context.Context, cfg Config) {
	m.Apply(cfg)

	if err := m.SaveSettings(ctx); err != nil {
		m.logger.Error("failed to save broker settings", "error", err)
	}
}

// Apply replaces the broker client like Configure without saving the
// settings.
func (m *Manager) Apply(cfg Config) {
	if cfg.Identifier == "" {
		cfg.Identifier = m.mqttCfg.Broker.ClientID
	}
	cfg.Host = strings.TrimSpace(cfg.Host)

	opts := mqtt.BaseOptions(m.mqttCfg)
	opts.ClientID = mqtt.ClientID(m.mqttCfg.Broker.ClientPrefix, cfg.Identifier, m.pid)
	opts.Host = cfg.Host
	if cfg.Username != "" {
		opts.Username = cfg.Username
		opts.Password = cfg.Password
	}

	m.mu.Lock()
	old := m.broker
	m.gen++
	gen := m.gen
	m.cfg = cfg
	m.broker = m.dial(opts, binding{m: m, gen: gen})
	m.mu.Unlock()

	if old != nil {
		old.Disconnect()
		m.do(func() { m.model.SetState(appstate.Disconnected) })
	}

	m.logger.Info("broker configured",
		"host", cfg.Host,
		"client_id", opts.ClientID,
		"authenticated", cfg.Username != "",
	)
}

// Connect issues an asynchronous connect request. The state becomes
// Connecting, or Disconnected at once if no request could be issued.
// Connect does nothing while already connected. There is no retry.
func (m *Manager) Connect() {
	b, gen := m.current()
	if b == nil {
		m.logger.Warn("connect requested before the broker is configured")
		m.do(func() { m.model.SetState(appstate.Disconnected) })
		return
	}

	if m.model.State().IsConnected() {
		m.logger.Debug("connect requested while connected")
		return
	}

	m.handle(gen, func() { m.model.SetState(appstate.Connecting) })

	if !b.Connect() {
		m.logger.Warn("broker connect could not be started", "host", m.CurrentHost())
		m.handle(gen, func() { m.model.SetState(appstate.Disconnected) })
	}
}

// ConnectWait connects and blocks until the attempt resolves.
//
// Returns:
//   - nil: once connected (or if already connected)
//   - ErrNotConfigured: if Configure has not been called
//   - ErrConnectFailed: if the attempt ended Disconnected
//   - ctx.Err(): on timeout or cancellation
func (m *Manager) ConnectWait(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}
	if m.model.State().IsConnected() {
		return nil
	}

	b, _ := m.current()
	if b == nil {
		m.Connect()
		return ErrNotConfigured
	}

	result := make(chan error, 1)
	var once sync.Once
	cancel := m.model.Observe(func(c appstate.Change, _ appstate.Snapshot) {
		if c.Kind != appstate.StateChanged {
			return
		}
		switch {
		case c.State.IsConnected():
			once.Do(func() { result <- nil })
		case c.State == appstate.Disconnected:
			once.Do(func() { result <- ErrConnectFailed })
		}
	})
	defer cancel()

	m.Connect()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for broker connection: %w", ctx.Err())
	case <-m.quit:
		return ErrClosed
	}
}

// Disconnect closes the broker connection and sets Disconnected.
// Safe to call in any state.
func (m *Manager) Disconnect() {
	if b, _ := m.current(); b != nil {
		b.Disconnect()
	}
	m.do(func() { m.model.SetState(appstate.Disconnected) })
}

// Subscribe records topic as the current topic and requests a
// subscription. The state becomes ConnectedSubscribed on the broker's ack.
func (m *Manager) Subscribe(topic string) {
	if topic == "" {
		m.logger.Warn("subscribe requested with empty topic")
		return
	}

	m.mu.Lock()
	m.topic = topic
	b := m.broker
	m.mu.Unlock()

	if b == nil {
		m.logger.Warn("subscribe requested before the broker is configured", "topic", topic)
		return
	}
	b.Subscribe(topic, m.qos())
}

// Publish sends message on the current topic. Without a subscribed topic
// it only logs.
func (m *Manager) Publish(message string) {
	b, _ := m.current()
	topic := m.Topic()

	if topic == "" {
		m.logger.Warn("publish requested with no subscribed topic")
		return
	}
	if b == nil {
		m.logger.Warn("publish requested before the broker is configured")
		return
	}
	b.Publish(topic, []byte(message), m.qos())
}

// Unsubscribe requests unsubscription from topic. The state becomes
// ConnectedUnsubscribed and the history is cleared on the broker's ack.
func (m *Manager) Unsubscribe(topic string) {
	if topic == "" {
		m.logger.Warn("unsubscribe requested with empty topic")
		return
	}

	b, _ := m.current()
	if b == nil {
		m.logger.Warn("unsubscribe requested before the broker is configured", "topic", topic)
		return
	}
	b.Unsubscribe(topic)
}

// UnsubscribeFromCurrentTopic unsubscribes from the last subscribed topic.
func (m *Manager) UnsubscribeFromCurrentTopic() {
	m.Unsubscribe(m.Topic())
}

// Close disconnects and stops the event loop. Further operations are
// ignored. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.Disconnect()
		close(m.quit)
		<-m.stopped
	})
}

func (m *Manager) isClosed() bool {
	select {
	case <-m.quit:
		return true
	default:
		return false
	}
}

func (m *Manager) qos() byte {
	return byte(m.mqttCfg.QoS)
}

// =============================================================================
// Accessors
// =============================================================================

// CurrentHost returns the configured broker host.
func (m *Manager) CurrentHost() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Host
}

// Username returns the configured broker username.
func (m *Manager) Username() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Username
}

// Password returns the configured broker password.
func (m *Manager) Password() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Password
}

// Identifier returns the configured client identity.
func (m *Manager) Identifier() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Identifier
}

// Topic returns the last subscribed topic.
func (m *Manager) Topic() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.topic
}

// IsConfigured reports whether a broker client exists.
func (m *Manager) IsConfigured() bool {
	b, _ := m.current()
	return b != nil
}

// IsSubscribed reports whether the state is ConnectedSubscribed.
func (m *Manager) IsSubscribed() bool {
	return m.model.State().IsSubscribed()
}

// IsConnected reports whether the state is one of the connected states.
func (m *Manager) IsConnected() bool {
	return m.model.State().IsConnected()
}

// ConnectionStateMessage returns the user-facing description of the state.
func (m *Manager) ConnectionStateMessage() string {
	return m.model.State().String()
}

// State returns the observable state model.
func (m *Manager) State() *appstate.Model {
	return m.model
}

// =============================================================================
// Broker events
// =============================================================================

func (m *Manager) onConnectAck(gen uint64, accepted bool) {
	if !accepted {
		if m.handle(gen, func() { m.model.SetState(appstate.Disconnected) }) {
			m.logger.Warn("broker refused connection", "host", m.CurrentHost())
		}
		return
	}

	if !m.handle(gen, func() { m.model.SetState(appstate.Connected) }) {
		return
	}
	m.logger.Info("connected to broker", "host", m.CurrentHost())

	status := m.mqttCfg.Status
	if status.Topic == "" {
		return
	}
	if b, cur := m.current(); b != nil && cur == gen {
		b.Publish(status.Topic, []byte(status.Payload), m.qos())
	}
}

func (m *Manager) onSubscribeAck(gen uint64, topics []string) {
	if m.handle(gen, func() { m.model.SetState(appstate.ConnectedSubscribed) }) {
		m.logger.Info("subscribed", "topics", topics)
	}
}

func (m *Manager) onUnsubscribeAck(gen uint64, topics []string) {
	applied := m.handle(gen, func() {
		m.model.SetState(appstate.ConnectedUnsubscribed)
		m.model.ClearData()
	})
	if applied {
		m.logger.Info("unsubscribed", "topics", topics)
	}
}

func (m *Manager) onMessage(gen uint64, topic string, payload []byte) {
	text := strings.ToValidUTF8(string(payload), "�")
	if m.handle(gen, func() { m.model.SetReceivedMessage(text) }) {
		m.logger.Debug("message received", "topic", topic, "size", len(payload))
	}
}

func (m *Manager) onPublishAck(gen uint64, id uint16) {
	if gen == m.generation() {
		m.logger.Debug("publish acknowledged", "message_id", id)
	}
}

func (m *Manager) onKeepAlive(gen uint64, kind string) {
	if gen == m.generation() {
		m.logger.Debug("keep-alive", "packet", kind)
	}
}

func (m *Manager) onDisconnect(gen uint64, err error) {
	if !m.handle(gen, func() { m.model.SetState(appstate.Disconnected) }) {
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("disconnected from broker", "host", m.CurrentHost(), "error", err)
		return
	}
	m.logger.Info("disconnected from broker", "host", m.CurrentHost())
}
