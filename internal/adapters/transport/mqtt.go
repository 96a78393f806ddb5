package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/bft-labs/tracemux/pkg/log"
)

// Defaults for the MQTT sink.
const (
	DefaultMQTTTopic          = "tracemux/frames"
	DefaultMQTTPublishTimeout = 5 * time.Second
	mqttDisconnectQuiesce     = 250 // milliseconds
)

// MQTTConfig configures an MQTTSink.
type MQTTConfig struct {
	// BrokerURL is mqtt://[user[:pass]@]host:port[/topic][?client-id=id].
	// The path, when present, is the topic.
	BrokerURL string

	// Topic overrides the topic taken from the URL.
	Topic string

	QoS byte

	// PublishTimeout bounds the wait for a publish acknowledgement.
	PublishTimeout time.Duration
}

// ClientOptionsFromURL creates client options and the topic from a broker URL.
func ClientOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", err
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("broker url %q has no host", brokerURL)
	}
	var server string
	if u.Scheme == "" || u.Scheme == "mqtt" {
		server = "tcp"
	} else {
		server = u.Scheme
	}
	server += "://" + u.Host

	topic := strings.TrimPrefix(u.Path, "/")

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, topic, nil
}

// MQTTSink publishes every submitted buffer as one MQTT message. The buffer
// is handed back once the publish token completes or the publish timeout
// expires; paho only ever sees a private copy.
type MQTTSink struct {
	client  paho.Client
	topic   string
	qos     byte
	timeout time.Duration
	back    *backoff
	logger  log.Logger

	t  tracker
	wg sync.WaitGroup
}

// NewMQTTSink creates an unconnected sink. Call Connect before use.
func NewMQTTSink(cfg MQTTConfig, logger log.Logger) (*MQTTSink, error) {
	opts, topic, err := ClientOptionsFromURL(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("mqtt sink: %w", err)
	}
	if cfg.Topic != "" {
		topic = cfg.Topic
	}
	s := newMQTTSink(nil, topic, cfg, logger)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.logger.Warn("mqtt connection lost", log.Err(err))
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		s.logger.Info("mqtt connected", log.String("topic", s.topic))
	})
	s.client = paho.NewClient(opts)
	return s, nil
}

func newMQTTSink(client paho.Client, topic string, cfg MQTTConfig, logger log.Logger) *MQTTSink {
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = DefaultMQTTPublishTimeout
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &MQTTSink{
		client:  client,
		topic:   topic,
		qos:     cfg.QoS,
		timeout: cfg.PublishTimeout,
		back:    newBackoff(DefaultBackoffInitial, DefaultBackoffMax),
		logger:  logger.With(log.String("transport", "mqtt")),
	}
}

// Connect connects to the broker, retrying with backoff until it succeeds
// or ctx is done. The backoff restarts from its initial delay after every
// successful connect.
func (s *MQTTSink) Connect(ctx context.Context) error {
	for {
		token := s.client.Connect()
		token.Wait()
		err := token.Error()
		if err == nil {
			s.back.Reset()
			return nil
		}
		s.logger.Warn("mqtt connect failed",
			log.Err(err),
			log.Duration("retry_in", s.back.Current()),
		)
		if werr := s.back.Wait(ctx); werr != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	}
}

// Submit publishes b asynchronously. It reports ErrSinkBusy while the
// connection is down.
func (s *MQTTSink) Submit(b []byte) error {
	err := s.t.begin(func() bool {
		if !s.client.IsConnectionOpen() {
			return false
		}
		s.wg.Add(1)
		return true
	})
	if err != nil {
		return err
	}
	// paho keeps the payload until the token completes, which can outlive
	// the publish timeout. The buffer goes back to the caller on timeout.
	payload := append([]byte(nil), b...)
	token := s.client.Publish(s.topic, s.qos, false, payload)

	go func() {
		defer s.wg.Done()
		s.await(token, len(b))
		s.t.done(b)
	}()
	return nil
}

func (s *MQTTSink) await(token paho.Token, size int) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			s.logger.Warn("mqtt publish failed", log.Err(err), log.Int("bytes", size))
		}
	case <-timer.C:
		s.logger.Warn("mqtt publish timeout", log.Duration("timeout", s.timeout), log.Int("bytes", size))
	}
}

// OnComplete registers the completion callback.
func (s *MQTTSink) OnComplete(cb func([]byte)) {
	s.t.setCallback(cb)
}

// WaitAllDone blocks until every publish has completed or timed out.
func (s *MQTTSink) WaitAllDone(timeout time.Duration) error {
	return s.t.wait(timeout)
}

// Close rejects further buffers, waits for in-flight publishes and
// disconnects.
func (s *MQTTSink) Close() error {
	if !s.t.close(nil) {
		return nil
	}
	s.wg.Wait()
	s.client.Disconnect(mqttDisconnectQuiesce)
	return nil
}
