// Package cloud maintains the device's MQTT session with the IoT platform.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/smazurov/smartlight/internal/events"
	"github.com/smazurov/smartlight/internal/metrics"
)

// Errors returned by Link.
var (
	ErrNotConfigured = errors.New("cloud broker not configured")
	ErrNotConnected  = errors.New("cloud session not connected")
)

const (
	defaultTopicPrefix    = "/sys"
	defaultConnectTimeout = 10 * time.Second
	resetMethod           = "thing.reset"
)

// Config describes the broker and device identity.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	ProductKey     string
	DeviceName     string
	ConnectTimeout time.Duration
}

// Link is the cloud session. Lifecycle steps are published as LinkkitEvent
// and session state changes as CloudEvent.
type Link struct {
	cfg       Config
	bus       events.Publisher
	logger    *slog.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu     sync.Mutex
	client mqtt.Client
	msgID  atomic.Uint64
}

// New creates a link. Nothing connects until Start.
func New(cfg Config, bus events.Publisher, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = defaultTopicPrefix
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ClientID == "" {
		cfg.ClientID = cfg.ProductKey + "." + cfg.DeviceName
	}
	return &Link{
		cfg:       cfg,
		bus:       bus,
		logger:    logger,
		newClient: mqtt.NewClient,
	}
}

// Configured reports whether a broker is set.
func (l *Link) Configured() bool {
	return l.cfg.Broker != ""
}

// Connected reports whether the session is up.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.client != nil && l.client.IsConnected()
}

// Start connects to the broker. The client reconnects on its own after a
// successful start.
func (l *Link) Start(ctx context.Context) error {
	if !l.Configured() {
		return ErrNotConfigured
	}

	l.mu.Lock()
	if l.client != nil {
		l.mu.Unlock()
		return nil
	}
	opts := mqtt.NewClientOptions().
		AddBroker(l.cfg.Broker).
		SetClientID(l.cfg.ClientID).
		SetUsername(l.cfg.Username).
		SetPassword(l.cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(l.cfg.ConnectTimeout).
		SetOnConnectHandler(l.onConnect).
		SetConnectionLostHandler(l.onConnectionLost)
	client := l.newClient(opts)
	l.client = client
	l.mu.Unlock()

	l.linkkit(events.ConnCloud)
	l.logger.Info("Connecting to cloud", "broker", l.cfg.Broker, "client_id", l.cfg.ClientID)

	token := client.Connect()
	if err := waitToken(ctx, token, l.cfg.ConnectTimeout); err != nil {
		l.mu.Lock()
		l.client = nil
		l.mu.Unlock()
		l.linkkit(events.ConnCloudFail)
		return fmt.Errorf("cloud connect: %w", err)
	}

	l.linkkit(events.ConnCloudSuc)
	return nil
}

// Stop disconnects, allowing 250ms for in-flight work.
func (l *Link) Stop() {
	l.mu.Lock()
	client := l.client
	l.client = nil
	l.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		metrics.SetCloudConnected(false)
	}
}

// ResetTopic returns the topic reset notices are published to.
func (l *Link) ResetTopic() string {
	return topic(l.cfg.TopicPrefix, l.cfg.ProductKey, l.cfg.DeviceName, "thing/reset")
}

// ReportReset tells the platform the device is being factory reset. The
// call returns once the broker acknowledged the notice or ctx ends.
func (l *Link) ReportReset(ctx context.Context) error {
	if !l.Configured() {
		return ErrNotConfigured
	}

	l.mu.Lock()
	client := l.client
	l.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(newRequest(l.msgID.Add(1), resetMethod))
	if err != nil {
		return fmt.Errorf("encode reset notice: %w", err)
	}

	t := l.ResetTopic()
	l.logger.Info("Reporting reset", "topic", t)
	if err := waitToken(ctx, client.Publish(t, 1, false, payload), 0); err != nil {
		return fmt.Errorf("publish reset notice: %w", err)
	}

	l.linkkit(events.Reset)
	return nil
}

func (l *Link) onConnect(mqtt.Client) {
	l.logger.Info("Cloud connected")
	metrics.SetCloudConnected(true)
	l.bus.Publish(events.CloudEvent{Code: events.CloudConnected, Timestamp: events.Now()})
}

func (l *Link) onConnectionLost(_ mqtt.Client, err error) {
	l.logger.Warn("Cloud connection lost", "error", err)
	metrics.SetCloudConnected(false)
	l.bus.Publish(events.CloudEvent{Code: events.CloudDisconnected, Timestamp: events.Now()})
}

func (l *Link) linkkit(code events.LinkkitCode) {
	l.bus.Publish(events.LinkkitEvent{Code: code, Timestamp: events.Now()})
}

// request is the platform's request envelope.
type request struct {
	ID      string         `json:"id"`
	Version string         `json:"version"`
	Params  map[string]any `json:"params"`
	Method  string         `json:"method"`
}

func newRequest(id uint64, method string) request {
	return request{
		ID:      fmt.Sprintf("%d", id),
		Version: "1.0",
		Params:  map[string]any{},
		Method:  method,
	}
}

func topic(prefix, product, device, suffix string) string {
	return strings.TrimRight(prefix, "/") + "/" + product + "/" + device + "/" + suffix
}

// waitToken waits for token, ctx, or timeout (when positive).
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return fmt.Errorf("timed out after %s", timeout)
	}
}
