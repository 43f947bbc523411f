package mqtt

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

// =============================================================================
// Test doubles
// =============================================================================

// fakeToken is a pahomqtt.Token completed by the test.
type fakeToken struct {
	done chan struct{}
	err  error
	id   uint16
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(time.Duration) bool {
	<-t.done
	return true
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }
func (t *fakeToken) MessageID() uint16     { return t.id }

// fakePaho records calls and completes every token immediately.
type fakePaho struct {
	mu   sync.Mutex
	opts *pahomqtt.ClientOptions

	connectErr   error
	subscribeErr error
	connected    bool

	calls     []string
	handlers  map[string]pahomqtt.MessageHandler
	publishID uint16
}

func (f *fakePaho) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakePaho) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePaho) IsConnected() bool      { return f.connected }
func (f *fakePaho) IsConnectionOpen() bool { return f.connected }

func (f *fakePaho) Connect() pahomqtt.Token {
	f.record("connect")
	if f.connectErr == nil {
		f.connected = true
		go f.opts.OnConnect(f)
	}
	return completedToken(f.connectErr)
}

func (f *fakePaho) Disconnect(uint) {
	f.record("disconnect")
	f.connected = false
}

func (f *fakePaho) Publish(topic string, qos byte, _ bool, payload interface{}) pahomqtt.Token {
	f.record(fmt.Sprintf("publish %s %d %s", topic, qos, payload))
	f.mu.Lock()
	f.publishID++
	id := f.publishID
	f.mu.Unlock()
	t := completedToken(nil)
	t.id = id
	return t
}

func (f *fakePaho) Subscribe(topic string, qos byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.record(fmt.Sprintf("subscribe %s %d", topic, qos))
	f.mu.Lock()
	f.handlers[topic] = cb
	f.mu.Unlock()
	return completedToken(f.subscribeErr)
}

func (f *fakePaho) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return completedToken(nil)
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.record("unsubscribe " + strings.Join(topics, ","))
	return completedToken(nil)
}

func (f *fakePaho) AddRoute(string, pahomqtt.MessageHandler) {}

func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.NewOptionsReader(f.opts)
}

// deliver invokes the subscription callback for topic.
func (f *fakePaho) deliver(topic, payload string) {
	f.mu.Lock()
	cb := f.handlers[topic]
	f.mu.Unlock()
	cb(f, &fakeMessage{topic: topic, payload: []byte(payload)})
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// recordingHandler captures events as strings on a channel.
type recordingHandler struct {
	events  chan string
	panicOn string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{events: make(chan string, 32), panicOn: "\x00panic"}
}

func (h *recordingHandler) OnConnectAck(accepted bool) {
	h.events <- fmt.Sprintf("connack %v", accepted)
}
func (h *recordingHandler) OnSubscribeAck(topics []string) {
	h.events <- "suback " + strings.Join(topics, ",")
}
func (h *recordingHandler) OnUnsubscribeAck(topics []string) {
	h.events <- "unsuback " + strings.Join(topics, ",")
}
func (h *recordingHandler) OnMessage(topic string, payload []byte) {
	if string(payload) == h.panicOn {
		panic("handler failure")
	}
	h.events <- fmt.Sprintf("message %s %s", topic, payload)
}
func (h *recordingHandler) OnPublishAck(id uint16) { h.events <- fmt.Sprintf("puback %d", id) }
func (h *recordingHandler) OnPing()                { h.events <- "ping" }
func (h *recordingHandler) OnPong()                { h.events <- "pong" }
func (h *recordingHandler) OnDisconnect(err error) { h.events <- fmt.Sprintf("disconnect %v", err) }

func (h *recordingHandler) next(t *testing.T) string {
	t.Helper()
	select {
	case e := <-h.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func (h *recordingHandler) expectNone(t *testing.T) {
	t.Helper()
	select {
	case e := <-h.events:
		t.Fatalf("unexpected event %q", e)
	case <-time.After(50 * time.Millisecond):
	}
}

// testLogger collects warnings.
type testLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *testLogger) Debug(string, ...any) {}
func (l *testLogger) Info(string, ...any)  {}
func (l *testLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
func (l *testLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()
}

func testOptions() Options {
	return Options{
		ClientID:  "chime-dev1-42",
		Host:      "broker.local",
		Port:      1883,
		KeepAlive: 60 * time.Second,
		Will:      Message{Topic: "/will", Payload: "dieout", QoS: 1},
	}
}

// newTestClient builds a Client over a fakePaho.
func newTestClient(t *testing.T, opts Options) (*Client, *fakePaho, *recordingHandler) {
	t.Helper()
	h := newRecordingHandler()
	fake := &fakePaho{handlers: make(map[string]pahomqtt.MessageHandler)}
	c := newClient(opts, h, func(o *pahomqtt.ClientOptions) pahomqtt.Client {
		fake.opts = o
		return fake
	})
	return c, fake, h
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Accepted(t *testing.T) {
	c, fake, h := newTestClient(t, testOptions())

	if !c.Connect() {
		t.Fatal("Connect() = false, want true")
	}
	if got := h.next(t); got != "connack true" {
		t.Errorf("event = %q, want %q", got, "connack true")
	}
	h.expectNone(t)

	if !c.IsConnected() {
		t.Error("IsConnected() = false after accepted connect")
	}
	if calls := fake.Calls(); len(calls) != 1 || calls[0] != "connect" {
		t.Errorf("calls = %v, want [connect]", calls)
	}
}

func TestConnect_Refused(t *testing.T) {
	c, fake, h := newTestClient(t, testOptions())
	fake.connectErr = packets.ErrorRefusedBadUsernameOrPassword

	if !c.Connect() {
		t.Fatal("Connect() = false, want true")
	}
	if got := h.next(t); got != "connack false" {
		t.Errorf("event = %q, want %q", got, "connack false")
	}
}

func TestConnect_NetworkError(t *testing.T) {
	c, fake, h := newTestClient(t, testOptions())
	fake.connectErr = fmt.Errorf("%w : %w", packets.ErrorNetworkError, errors.New("connection refused"))

	c.Connect()
	if got := h.next(t); !strings.HasPrefix(got, "disconnect network Error") {
		t.Errorf("event = %q, want a disconnect with the network error", got)
	}
}

func TestConnect_InvalidHost(t *testing.T) {
	tests := []struct {
		name string
		host string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"path", "broker.local/mqtt"},
		{"credentials in host", "user@broker.local"},
		{"host with port", "broker.local:1883"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.Host = tt.host
			c, fake, h := newTestClient(t, opts)
			logger := &testLogger{}
			c.SetLogger(logger)

			if c.Connect() {
				t.Error("Connect() = true, want false")
			}
			if fake.opts != nil {
				t.Error("paho client should not be created for an invalid host")
			}
			if c.IsConnected() {
				t.Error("IsConnected() = true")
			}
			h.expectNone(t)
			if len(logger.warns) != 1 {
				t.Errorf("warnings = %v, want one", logger.warns)
			}
		})
	}
}

func TestConnectionLost(t *testing.T) {
	c, fake, h := newTestClient(t, testOptions())
	c.Connect()
	h.next(t)

	fake.opts.OnConnectionLost(fake, errors.New("EOF"))
	if got := h.next(t); got != "disconnect EOF" {
		t.Errorf("event = %q, want %q", got, "disconnect EOF")
	}
}

func TestDisconnect(t *testing.T) {
	c, fake, h := newTestClient(t, testOptions())
	c.Connect()
	h.next(t)

	c.Disconnect()
	if got := h.next(t); got != "disconnect <nil>" {
		t.Errorf("event = %q, want %q", got, "disconnect <nil>")
	}
	if calls := fake.Calls(); calls[len(calls)-1] != "disconnect" {
		t.Errorf("last call = %q, want disconnect", calls[len(calls)-1])
	}
}

func TestDisconnect_Unconfigured(t *testing.T) {
	opts := testOptions()
	opts.Host = ""
	c, _, h := newTestClient(t, opts)

	c.Disconnect()
	if got := h.next(t); got != "disconnect <nil>" {
		t.Errorf("event = %q, want %q", got, "disconnect <nil>")
	}
}

// =============================================================================
// Subscribe / Publish Tests
// =============================================================================

func TestSubscribe_AckAndMessages(t *testing.T) {
	c, fake, h := newTestClient(t, testOptions())

	c.Subscribe("doorbell/events", 1)
	if got := h.next(t); got != "suback doorbell/events" {
		t.Fatalf("event = %q, want suback", got)
	}

	fake.deliver("doorbell/events", "ring")
	if got := h.next(t); got != "message doorbell/events ring" {
		t.Errorf("event = %q, want message", got)
	}
}

func TestSubscribe_Failure(t *testing.T) {
	c, fake, h := newTestClient(t, testOptions())
	logger := &testLogger{}
	c.SetLogger(logger)
	fake.subscribeErr = errors.New("not connected")

	c.Subscribe("doorbell/events", 1)
	h.expectNone(t)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one", logger.warns)
	}
}

func TestSubscribe_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		qos   byte
	}{
		{"empty topic", "", 1},
		{"bad wildcard", "doorbell/#/front", 1},
		{"invalid qos", "doorbell/events", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake, h := newTestClient(t, testOptions())
			c.Subscribe(tt.topic, tt.qos)
			h.expectNone(t)
			if len(fake.Calls()) != 0 {
				t.Errorf("calls = %v, want none", fake.Calls())
			}
		})
	}
}

func TestUnsubscribe(t *testing.T) {
	c, fake, h := newTestClient(t, testOptions())

	c.Unsubscribe("doorbell/events")
	if got := h.next(t); got != "unsuback doorbell/events" {
		t.Errorf("event = %q, want unsuback", got)
	}
	if calls := fake.Calls(); calls[0] != "unsubscribe doorbell/events" {
		t.Errorf("calls = %v", calls)
	}
}

func TestPublish(t *testing.T) {
	c, fake, h := newTestClient(t, testOptions())

	c.Publish("status", []byte("Client connected"), 1)
	if got := h.next(t); got != "puback 1" {
		t.Errorf("event = %q, want %q", got, "puback 1")
	}
	if calls := fake.Calls(); calls[0] != "publish status 1 Client connected" {
		t.Errorf("calls = %v", calls)
	}
}

func TestPublish_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
	}{
		{"wildcard topic", "doorbell/+", []byte("x"), 1},
		{"empty topic", "", []byte("x"), 1},
		{"invalid qos", "status", []byte("x"), 5},
		{"oversized payload", "status", make([]byte, maxPayloadSize+1), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake, h := newTestClient(t, testOptions())
			logger := &testLogger{}
			c.SetLogger(logger)

			c.Publish(tt.topic, tt.payload, tt.qos)
			h.expectNone(t)
			if len(fake.Calls()) != 0 {
				t.Errorf("calls = %v, want none", fake.Calls())
			}
			if len(logger.warns) != 1 {
				t.Errorf("warnings = %v, want one", logger.warns)
			}
		})
	}
}

func TestMessageHandlerPanicRecovered(t *testing.T) {
	c, fake, h := newTestClient(t, testOptions())
	logger := &testLogger{}
	c.SetLogger(logger)
	h.panicOn = "boom"

	c.Subscribe("doorbell/events", 1)
	h.next(t)

	fake.deliver("doorbell/events", "boom")
	fake.deliver("doorbell/events", "ring")

	if got := h.next(t); got != "message doorbell/events ring" {
		t.Errorf("event = %q, want the message after the panic", got)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errs) != 1 {
		t.Errorf("errors logged = %v, want one panic report", logger.errs)
	}
}

func TestDefaultPublishHandlerForwards(t *testing.T) {
	_, fake, h := newTestClient(t, testOptions())

	fake.opts.DefaultPublishHandler(fake, &fakeMessage{topic: "doorbell/back", payload: []byte("knock")})
	if got := h.next(t); got != "message doorbell/back knock" {
		t.Errorf("event = %q, want message", got)
	}
}

func TestIsRefused(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{packets.ErrorRefusedBadProtocolVersion, true},
		{packets.ErrorRefusedIDRejected, true},
		{packets.ErrorRefusedServerUnavailable, true},
		{packets.ErrorRefusedBadUsernameOrPassword, true},
		{packets.ErrorRefusedNotAuthorised, true},
		{packets.ErrorNetworkError, false},
		{errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := isRefused(tt.err); got != tt.want {
				t.Errorf("isRefused(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
