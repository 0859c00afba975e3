package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/commlink/commlink/internal/protocol"
)

// fakeTransport is an in-process Transport for exercising the engine
// without a broker. Tests flip its error fields to simulate transport
// faults and call deliver/dropConnection to emit events.
type fakeTransport struct {
	mu           sync.Mutex
	onMessage    func(topic string, payload []byte)
	onLost       func(reason error)
	connected    bool
	connectErr   error
	publishErr   error
	subscribeErr error
	connectCalls  int
	connectAborts int
	published     []string
	subscribed    []string
	unsubscribed  []string
	blockConnect  chan struct{}

	// subscribeHook runs after each successful Subscribe, outside the
	// fake's lock, so tests can interleave events with replay.
	subscribeHook func(topic string)
}

func (f *fakeTransport) Bind(onMessage func(string, []byte), onLost func(error)) {
	f.onMessage = onMessage
	f.onLost = onLost
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connectCalls++
	block := f.blockConnect
	err := f.connectErr
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			f.mu.Lock()
			f.connectAborts++
			f.mu.Unlock()
			return fmt.Errorf("%w: %v", protocol.ErrConnection, ctx.Err())
		}
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *fakeTransport) Publish(topic string, payload []byte, qos byte, retain bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, topic+"="+string(payload))
	return nil
}

func (f *fakeTransport) Subscribe(topic string, qos byte) error {
	f.mu.Lock()
	if f.subscribeErr != nil {
		f.mu.Unlock()
		return f.subscribeErr
	}
	f.subscribed = append(f.subscribed, topic)
	hook := f.subscribeHook
	f.mu.Unlock()

	if hook != nil {
		hook(topic)
	}
	return nil
}

func (f *fakeTransport) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topic)
	return nil
}

func (f *fakeTransport) setConnectErr(err error) {
	f.mu.Lock()
	f.connectErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) setPublishErr(err error) {
	f.mu.Lock()
	f.publishErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

func (f *fakeTransport) aborts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectAborts
}

func (f *fakeTransport) isConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) publishedMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func (f *fakeTransport) subscribedTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribed...)
}

func (f *fakeTransport) unsubscribedTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unsubscribed...)
}

// deliver emits an inbound message event.
func (f *fakeTransport) deliver(topic string, payload []byte) {
	f.onMessage(topic, payload)
}

// dropConnection emits a connection-lost event.
func (f *fakeTransport) dropConnection(reason error) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.onLost(reason)
}

// fastOptions returns engine options with millisecond backoff so
// reconnect tests finish quickly.
func fastOptions() Options {
	return Options{
		Reconnect: ReconnectPolicy{
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
		},
		QueueCapacity:  10,
		ConnectTimeout: time.Second,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

// =============================================================================
// Connection Lifecycle
// =============================================================================

func TestConnect(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions())

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !e.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if got := e.State(); got != Connected {
		t.Errorf("State() = %v, want Connected", got)
	}
}

func TestConnect_Idempotent(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions())

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	if got := ft.calls(); got != 1 {
		t.Errorf("transport Connect called %d times, want 1", got)
	}
}

func TestConnect_InitialFailureNotRetried(t *testing.T) {
	ft := &fakeTransport{}
	ft.setConnectErr(fmt.Errorf("%w: refused", protocol.ErrConnection))
	e := New(ft, fastOptions())

	err := e.Connect(context.Background())
	if !errors.Is(err, protocol.ErrConnection) {
		t.Fatalf("Connect() error = %v, want ErrConnection", err)
	}
	if got := e.State(); got != Disconnected {
		t.Errorf("State() = %v, want Disconnected", got)
	}

	// No automatic retry on initial connect failure.
	time.Sleep(20 * time.Millisecond)
	if got := ft.calls(); got != 1 {
		t.Errorf("transport Connect called %d times, want 1", got)
	}
}

func TestConnect_Timeout(t *testing.T) {
	ft := &fakeTransport{blockConnect: make(chan struct{})}
	opts := fastOptions()
	opts.ConnectTimeout = 10 * time.Millisecond
	e := New(ft, opts)

	err := e.Connect(context.Background())
	if !errors.Is(err, protocol.ErrConnection) {
		t.Fatalf("Connect() error = %v, want ErrConnection", err)
	}
	if got := e.State(); got != Disconnected {
		t.Errorf("State() = %v, want Disconnected", got)
	}
}

func TestConnect_Background(t *testing.T) {
	ft := &fakeTransport{}
	opts := fastOptions()
	opts.BackgroundConnect = true
	e := New(ft, opts)

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitFor(t, time.Second, e.IsConnected, "engine never reached Connected in background mode")
}

func TestDisconnect_Idempotent(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions())

	if err := e.Disconnect(); err != nil {
		t.Errorf("Disconnect() while disconnected error = %v", err)
	}

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := e.Disconnect(); err != nil {
		t.Errorf("Disconnect() error = %v", err)
	}
	if err := e.Disconnect(); err != nil {
		t.Errorf("second Disconnect() error = %v", err)
	}
	if e.IsConnected() {
		t.Error("IsConnected() = true after Disconnect()")
	}
}

func TestDisconnect_PreservesRegistryAndQueue(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions())

	if _, err := e.Subscribe("plant/state", 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if res, _ := e.Publish("plant/cmd", []byte("on"), 1, false); res != protocol.Queued {
		t.Fatalf("Publish() result = %v, want Queued", res)
	}

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := e.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	// Registry survives teardown: a later Connect restores it.
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect error = %v", err)
	}
	subs := ft.subscribedTopics()
	if len(subs) != 2 || subs[1] != "plant/state" {
		t.Errorf("subscribed topics = %v, want plant/state replayed twice", subs)
	}
}

// =============================================================================
// Reconnect
// =============================================================================

func TestReconnect_RestoresSubscriptionsAndFlushesQueue(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions())

	var received []string
	var recvMu sync.Mutex
	_, err := e.Subscribe("plant/state", 1, func(topic string, payload []byte) error {
		recvMu.Lock()
		received = append(received, string(payload))
		recvMu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Hold the reconnect loop in failure while messages queue up.
	ft.setConnectErr(fmt.Errorf("%w: broker down", protocol.ErrConnection))
	ft.dropConnection(errors.New("unexpected EOF"))

	if got := e.State(); got != Reconnecting {
		t.Fatalf("State() after loss = %v, want Reconnecting", got)
	}

	for _, payload := range []string{"m1", "m2", "m3"} {
		res, perr := e.Publish("plant/cmd", []byte(payload), 1, false)
		if perr != nil || res != protocol.Queued {
			t.Fatalf("Publish(%q) = %v, %v, want Queued", payload, res, perr)
		}
	}

	ft.setConnectErr(nil)
	waitFor(t, time.Second, e.IsConnected, "engine never reconnected")

	// Subscription replayed without the caller re-subscribing.
	subs := ft.subscribedTopics()
	if len(subs) != 2 || subs[1] != "plant/state" {
		t.Errorf("subscribed topics = %v, want two plant/state entries", subs)
	}

	// Queue flushed oldest-first.
	waitFor(t, time.Second, func() bool { return e.QueueDepth() == 0 }, "queue never drained")
	want := []string{"plant/cmd=m1", "plant/cmd=m2", "plant/cmd=m3"}
	got := ft.publishedMessages()
	if len(got) != len(want) {
		t.Fatalf("published = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("published[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Messages still reach the restored subscription.
	ft.deliver("plant/state", []byte("hello"))
	recvMu.Lock()
	defer recvMu.Unlock()
	if len(received) != 1 || received[0] != "hello" {
		t.Errorf("received = %v, want [hello]", received)
	}
}

func TestReconnect_AttemptsExhausted(t *testing.T) {
	ft := &fakeTransport{}
	opts := fastOptions()
	opts.Reconnect.MaxAttempts = 3
	e := New(ft, opts)

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	var transitions []ConnectionState
	var reasons []error
	var obsMu sync.Mutex
	e.SetStatusObserver(func(state ConnectionState, reason error) {
		obsMu.Lock()
		transitions = append(transitions, state)
		reasons = append(reasons, reason)
		obsMu.Unlock()
	})

	ft.setConnectErr(fmt.Errorf("%w: broker down", protocol.ErrConnection))
	ft.dropConnection(errors.New("unexpected EOF"))

	waitFor(t, time.Second, func() bool { return e.State() == Disconnected },
		"engine never gave up reconnecting")

	// Initial connect plus exactly MaxAttempts reconnect tries.
	if got := ft.calls(); got != 4 {
		t.Errorf("transport Connect called %d times, want 4", got)
	}

	obsMu.Lock()
	defer obsMu.Unlock()
	if len(transitions) < 2 {
		t.Fatalf("observer transitions = %v, want Reconnecting then Disconnected", transitions)
	}
	last := len(transitions) - 1
	if transitions[0] != Reconnecting || transitions[last] != Disconnected {
		t.Errorf("observer transitions = %v, want [Reconnecting ... Disconnected]", transitions)
	}
	if !errors.Is(reasons[last], protocol.ErrConnection) {
		t.Errorf("terminal reason = %v, want ErrConnection", reasons[last])
	}
}

func TestReconnect_AuthFailureHaltsImmediately(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions()) // unlimited attempts

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	ft.setConnectErr(fmt.Errorf("%w: bad password", protocol.ErrAuthentication))
	ft.dropConnection(errors.New("unexpected EOF"))

	waitFor(t, time.Second, func() bool { return e.State() == Disconnected },
		"auth failure did not halt the reconnect loop")

	// Initial connect plus a single reconnect attempt; bad credentials
	// are never retried.
	if got := ft.calls(); got != 2 {
		t.Errorf("transport Connect called %d times, want 2", got)
	}
}

func TestDisconnect_CancelsBackoffWait(t *testing.T) {
	ft := &fakeTransport{}
	opts := fastOptions()
	opts.Reconnect.InitialDelay = time.Hour
	opts.Reconnect.MaxDelay = time.Hour
	e := New(ft, opts)

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	ft.dropConnection(errors.New("unexpected EOF"))

	start := time.Now()
	if err := e.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Disconnect() blocked %v waiting out backoff", elapsed)
	}
	if got := e.State(); got != Disconnected {
		t.Errorf("State() = %v, want Disconnected", got)
	}
}

func TestConnect_NoOpDuringReconnecting(t *testing.T) {
	ft := &fakeTransport{}
	opts := fastOptions()
	opts.Reconnect.InitialDelay = time.Hour
	opts.Reconnect.MaxDelay = time.Hour
	e := New(ft, opts)

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	ft.dropConnection(errors.New("unexpected EOF"))

	// The reconnect loop owns the transition; explicit Connect is a no-op.
	if err := e.Connect(context.Background()); err != nil {
		t.Errorf("Connect() during Reconnecting error = %v", err)
	}
	if got := ft.calls(); got != 1 {
		t.Errorf("transport Connect called %d times, want 1", got)
	}
	if err := e.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
}

func TestReconnect_LossDuringReplayIsNotDropped(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions())

	if _, err := e.Subscribe("plant/state", 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// The fresh connection dies while the subscription replay is still
	// in flight. The transport reports loss once per established
	// connection, so swallowing this event would leave the session
	// Connected against a dead transport with no recovery running.
	var once sync.Once
	ft.subscribeHook = func(string) {
		once.Do(func() { ft.dropConnection(errors.New("unexpected EOF")) })
	}

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitFor(t, time.Second, func() bool { return e.IsConnected() && ft.isConnected() },
		"engine never recovered from a loss raised during replay")
	if got := ft.calls(); got != 2 {
		t.Errorf("transport Connect called %d times, want 2", got)
	}
}

func TestSubscribe_DuringReplayReachesTransport(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions())

	if _, err := e.Subscribe("plant/a", 0, func(string, []byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// A second subscription lands mid-replay: after the replay snapshot
	// was taken, before the session is declared Connected. It must still
	// reach the transport on this connection, not the next one.
	var once sync.Once
	ft.subscribeHook = func(string) {
		once.Do(func() {
			if _, err := e.Subscribe("plant/b", 0, func(string, []byte) error { return nil }); err != nil {
				t.Errorf("Subscribe() during replay error = %v", err)
			}
		})
	}

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	subs := ft.subscribedTopics()
	if len(subs) != 2 || subs[0] != "plant/a" || subs[1] != "plant/b" {
		t.Errorf("subscribed topics = %v, want [plant/a plant/b]", subs)
	}
}

func TestDisconnect_AbortsInFlightReconnectAttempt(t *testing.T) {
	ft := &fakeTransport{}
	opts := fastOptions()
	opts.ConnectTimeout = time.Hour
	e := New(ft, opts)

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Make the next connect attempt hang, then lose the connection.
	ft.mu.Lock()
	ft.blockConnect = make(chan struct{})
	ft.mu.Unlock()
	ft.dropConnection(errors.New("unexpected EOF"))

	waitFor(t, time.Second, func() bool { return ft.calls() == 2 },
		"reconnect attempt never started")

	if err := e.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	// The hung attempt must be cancelled now, not when its hour-long
	// timeout expires.
	waitFor(t, time.Second, func() bool { return ft.aborts() == 1 },
		"Disconnect did not cancel the in-flight reconnect attempt")

	time.Sleep(20 * time.Millisecond)
	if got := ft.calls(); got != 2 {
		t.Errorf("transport Connect called %d times after Disconnect, want 2", got)
	}
}

// =============================================================================
// Outbound Queue
// =============================================================================

func TestPublish_Delivered(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions())
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	res, err := e.Publish("plant/cmd", []byte("on"), 1, false)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if res != protocol.Delivered {
		t.Errorf("Publish() result = %v, want Delivered", res)
	}
}

func TestPublish_QueuedWhileDisconnected(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions())

	res, err := e.Publish("plant/cmd", []byte("on"), 1, false)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if res != protocol.Queued {
		t.Errorf("Publish() result = %v, want Queued", res)
	}
	if got := e.QueueDepth(); got != 1 {
		t.Errorf("QueueDepth() = %d, want 1", got)
	}
}

func TestPublish_TransportFailureQueues(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions())
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	ft.setPublishErr(fmt.Errorf("%w: write failed", protocol.ErrProtocol))
	res, err := e.Publish("plant/cmd", []byte("on"), 1, false)
	if err != nil {
		t.Fatalf("Publish() error = %v, want nil (payload queued, not lost)", err)
	}
	if res != protocol.Queued {
		t.Errorf("Publish() result = %v, want Queued", res)
	}
	if got := e.QueueDepth(); got != 1 {
		t.Errorf("QueueDepth() = %d, want 1", got)
	}
}

func TestPublish_QueueFullIsExplicit(t *testing.T) {
	ft := &fakeTransport{}
	opts := fastOptions()
	opts.QueueCapacity = 2
	e := New(ft, opts)

	for i := 0; i < 2; i++ {
		if res, _ := e.Publish("plant/cmd", []byte("x"), 0, false); res != protocol.Queued {
			t.Fatalf("Publish() #%d result = %v, want Queued", i, res)
		}
	}

	res, err := e.Publish("plant/cmd", []byte("overflow"), 0, false)
	if res != protocol.Rejected {
		t.Errorf("Publish() result = %v, want Rejected", res)
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Publish() error = %v, want ErrQueueFull", err)
	}
	// Older messages were not evicted.
	if got := e.QueueDepth(); got != 2 {
		t.Errorf("QueueDepth() = %d, want 2", got)
	}
}

func TestPublish_Validation(t *testing.T) {
	e := New(&fakeTransport{}, fastOptions())

	if _, err := e.Publish("", []byte("x"), 0, false); !errors.Is(err, protocol.ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if _, err := e.Publish("t", []byte("x"), 3, false); !errors.Is(err, protocol.ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v, want ErrInvalidQoS", err)
	}
}

func TestDrain_MidDrainFailureRequeuesRemainder(t *testing.T) {
	ft := &fakeTransport{}
	e := New(ft, fastOptions())

	for _, p := range []string{"m1", "m2", "m3"} {
		if res, _ := e.Publish("plant/cmd", []byte(p), 0, false); res != protocol.Queued {
			t.Fatalf("Publish(%q) not queued", p)
		}
	}

	// Every drain publish fails: all three messages must survive.
	ft.setPublishErr(fmt.Errorf("%w: write failed", protocol.ErrProtocol))
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if got := e.QueueDepth(); got != 3 {
		t.Errorf("QueueDepth() after failed drain = %d, want 3", got)
	}

	// Next successful connect resumes the drain in order.
	ft.setPublishErr(nil)
	if err := e.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitFor(t, time.Second, func() bool { return e.QueueDepth() == 0 }, "queue never drained")

	want := []string{"plant/cmd=m1", "plant/cmd=m2", "plant/cmd=m3"}
	got := ft.publishedMessages()
	if len(got) != len(want) {
		t.Fatalf("published = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("published[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// =============================================================================
// Backoff Policy
// =============================================================================

func TestReconnectPolicy_Delay(t *testing.T) {
	p := ReconnectPolicy{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 4 * time.Second},
		{attempt: 4, want: 16 * time.Second},
		{attempt: 5, want: 30 * time.Second}, // capped
		{attempt: 100, want: 30 * time.Second},
		{attempt: -1, want: time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	// Non-decreasing up to the cap.
	prev := time.Duration(0)
	for attempt := 0; attempt < 64; attempt++ {
		d := p.Delay(attempt)
		if d < prev {
			t.Fatalf("Delay(%d) = %v decreased below %v", attempt, d, prev)
		}
		if d > p.MaxDelay {
			t.Fatalf("Delay(%d) = %v exceeds MaxDelay %v", attempt, d, p.MaxDelay)
		}
		prev = d
	}
}
