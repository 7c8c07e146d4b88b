package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/infrastructure/resilience"
)

// Notifier publishes terminal document events on "<prefix>.<kind>" and can
// subscribe to all of them.
type Notifier struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, prefix string) (*Notifier, error) {
	return NewWithOptions(url, prefix, Options{})
}

func NewWithOptions(url, prefix string, options Options) (*Notifier, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("hyena-client"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Notifier{
		conn:     conn,
		prefix:   normalizePrefix(prefix),
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (n *Notifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

func (n *Notifier) NotifyDocument(ctx context.Context, event domain.DocumentEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	subject := eventSubject(n.prefix, event.Kind)

	call := func(_ context.Context) error {
		if err := n.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if n.executor != nil {
		err = n.executor.Execute(ctx, publishOperation, call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return asTemporaryPublishError(err)
	}
	return nil
}

// SubscribeDocumentEvents delivers every event under the prefix to handler
// until ctx is done.
func (n *Notifier) SubscribeDocumentEvents(ctx context.Context, handler func(context.Context, domain.DocumentEvent) error) error {
	sub, err := n.conn.Subscribe(n.prefix+".>", func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			n.logger.Warn("nats_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			n.logger.Error("document_event_handler_failed", "doc_id", event.Document.ID, "kind", string(event.Kind), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := n.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := n.conn.FlushTimeout(5 * time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return "hyena.documents"
	}
	return prefix
}

func eventSubject(prefix string, kind domain.DocumentEventKind) string {
	return prefix + "." + string(kind)
}

func encodeEvent(event domain.DocumentEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal document event: %w", err)
	}
	return payload, nil
}

func decodeEvent(data []byte) (domain.DocumentEvent, error) {
	var event domain.DocumentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.DocumentEvent{}, fmt.Errorf("unmarshal document event: %w", err)
	}
	if event.Kind == "" || event.Document.ID == "" {
		return domain.DocumentEvent{}, errors.New("document event without kind or document id")
	}
	return event, nil
}
