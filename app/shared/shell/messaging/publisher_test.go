package messaging_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/messaging"
	. "github.com/AntonStoeckl/library-lending-go/testutil/helper" //nolint:revive
)

func Test_Publisher_Publish_SendsPersistentJSONWithRoutingKey(t *testing.T) {
	// setup
	channel := &channelSpy{}
	publisher := messaging.NewPublisher(channel, "library.events")

	// arrange
	notification := shell.NewNotification(shell.NotificationBookBorrowed, GivenUniqueID(t), GivenUniqueID(t), FakeClock())

	// act
	publisher.Publish(context.Background(), notification)

	// assert
	require.Len(t, channel.published, 1)
	sent := channel.published[0]
	assert.Equal(t, "library.events", sent.exchange)
	assert.Equal(t, "library.book.borrowed", sent.key)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)
	assert.Equal(t, FakeClock(), sent.msg.Timestamp)

	var decoded shell.Notification
	require.NoError(t, jsoniter.Unmarshal(sent.msg.Body, &decoded))
	assert.Equal(t, notification.BookID, decoded.BookID)
	assert.Equal(t, notification.UserID, decoded.UserID)
	assert.Equal(t, notification.Name, decoded.Name)
	assert.True(t, notification.OccurredAt.Equal(decoded.OccurredAt))
}

func Test_Publisher_Publish_FailureIsOnlyLogged(t *testing.T) {
	// setup
	logHandler := NewLogHandlerSpy(false)
	channel := &channelSpy{err: errors.New("channel/connection is not open")}
	publisher := messaging.NewPublisher(
		channel,
		"library.events",
		messaging.WithContextualLogger(slog.New(logHandler)),
	)

	// arrange
	bookID := GivenUniqueID(t)

	// act
	assert.NotPanics(t, func() {
		publisher.Publish(
			context.Background(),
			shell.NewNotification(shell.NotificationBookRemoved, bookID, GivenUniqueID(t), FakeClock()),
		)
	})

	// assert
	assert.True(t, logHandler.HasWarnLogWithMessage("messaging: publishing notification failed").
		WithAttrValue("routing_key", "library.book.removed").
		WithAttrValue("book_id", bookID.String()).
		WithAttr("error").
		Assert())
}

func Test_Publisher_Publish_SurvivesCanceledRequestContext(t *testing.T) {
	// setup
	channel := &channelSpy{}
	publisher := messaging.NewPublisher(channel, "library.events")

	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	publisher.Publish(ctx, shell.NewNotification(shell.NotificationBookAdded, GivenUniqueID(t), GivenUniqueID(t), FakeClock()))

	// assert
	require.Len(t, channel.published, 1)
	assert.NoError(t, channel.published[0].ctxErr)
}

func Test_Publisher_Close_ClosesChannel(t *testing.T) {
	// setup
	channel := &channelSpy{}
	publisher := messaging.NewPublisher(channel, "library.events")

	// act
	err := publisher.Close()

	// assert
	assert.NoError(t, err)
	assert.True(t, channel.closed)
}

type publishedMessage struct {
	exchange string
	key      string
	msg      amqp.Publishing
	ctxErr   error
}

type channelSpy struct {
	mu        sync.Mutex
	err       error
	published []publishedMessage
	closed    bool
}

func (c *channelSpy) PublishWithContext(
	ctx context.Context,
	exchange, key string,
	_, _ bool,
	msg amqp.Publishing,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}

	c.published = append(c.published, publishedMessage{exchange: exchange, key: key, msg: msg, ctxErr: ctx.Err()})

	return nil
}

func (c *channelSpy) Close() error {
	c.closed = true
	return nil
}
