package messaging

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
)

const (
	exchangeKind          = "topic"
	contentTypeJSON       = "application/json"
	defaultPublishTimeout = 2 * time.Second

	logMsgPublishFailed = "messaging: publishing notification failed"
	logMsgPublished     = "messaging: notification published"
	logAttrRoutingKey   = "routing_key"
	logAttrBookID       = "book_id"
	logAttrError        = "error"
)

var (
	ErrDialingBrokerFailed     = errors.New("dialing amqp broker failed")
	ErrOpeningChannelFailed    = errors.New("opening amqp channel failed")
	ErrDeclaringExchangeFailed = errors.New("declaring amqp exchange failed")
	ErrEncodingFailed          = errors.New("encoding notification failed")
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements shell.NotificationPublisher on an AMQP channel.
type Publisher struct {
	conn             *amqp.Connection
	channel          Channel
	exchange         string
	timeout          time.Duration
	logger           shell.Logger
	contextualLogger shell.ContextualLogger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(logger shell.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithContextualLogger sets the context-aware logger.
func WithContextualLogger(logger shell.ContextualLogger) Option {
	return func(p *Publisher) {
		p.contextualLogger = logger
	}
}

// WithPublishTimeout bounds a single publish call.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(p *Publisher) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// Dial connects to the broker, declares the durable topic exchange and returns a publisher on it.
func Dial(url string, exchange string, opts ...Option) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Join(ErrDialingBrokerFailed, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Join(ErrOpeningChannelFailed, err)
	}

	if err = ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, errors.Join(ErrDeclaringExchangeFailed, err)
	}

	p := NewPublisher(ch, exchange, opts...)
	p.conn = conn

	return p, nil
}

// NewPublisher creates a publisher on an already prepared channel.
func NewPublisher(ch Channel, exchange string, opts ...Option) *Publisher {
	p := &Publisher{
		channel:  ch,
		exchange: exchange,
		timeout:  defaultPublishTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Publish sends the notification as a persistent JSON message. Failures are only logged.
func (p *Publisher) Publish(ctx context.Context, notification shell.Notification) {
	body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(notification)
	if err != nil {
		p.logFailure(ctx, notification, errors.Join(ErrEncodingFailed, err))
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err = p.channel.PublishWithContext(publishCtx, p.exchange, notification.Name, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    notification.OccurredAt,
		Type:         notification.Name,
		Body:         body,
	})
	if err != nil {
		p.logFailure(ctx, notification, err)
		return
	}

	if p.contextualLogger != nil {
		p.contextualLogger.DebugContext(ctx, logMsgPublished, logAttrRoutingKey, notification.Name)
	} else if p.logger != nil {
		p.logger.Debug(logMsgPublished, logAttrRoutingKey, notification.Name)
	}
}

// Close closes the channel and, if the publisher dialed it, the connection.
func (p *Publisher) Close() error {
	err := p.channel.Close()

	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}

	return err
}

func (p *Publisher) logFailure(ctx context.Context, notification shell.Notification, err error) {
	args := []any{
		logAttrRoutingKey, notification.Name,
		logAttrBookID, notification.BookID.String(),
		logAttrError, err.Error(),
	}

	if p.contextualLogger != nil {
		p.contextualLogger.WarnContext(ctx, logMsgPublishFailed, args...)
		return
	}

	if p.logger != nil {
		p.logger.Warn(logMsgPublishFailed, args...)
	}
}

var _ shell.NotificationPublisher = (*Publisher)(nil)
