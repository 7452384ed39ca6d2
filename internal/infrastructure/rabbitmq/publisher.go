package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
)

const (
	defaultBufferSize = 256
	publishTimeout    = 5 * time.Second
)

// ErrBufferFull は送信待ちのイベントが溢れたことを表す
var ErrBufferFull = errors.New("通知の送信待ちが上限に達しました")

// channel は amqp.Channel のうち送信に使う部分
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// connectFunc はブローカーに接続し、送信用チャネルとその後始末を返す
type connectFunc func() (channel, func(), error)

// Publisher は注文イベントを RabbitMQ のキューに送る
// Notify はバッファに積むだけで待たず、送信は Start のループで行う
type Publisher struct {
	queue   string
	events  chan application.OrderEvent
	connect connectFunc

	ch    channel
	close func()
}

var _ application.Notifier = (*Publisher)(nil)

// NewPublisher は url のブローカーの queue に送る Publisher を作成する
func NewPublisher(url, queue string) *Publisher {
	return newPublisher(queue, defaultBufferSize, func() (channel, func(), error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("RabbitMQ接続に失敗: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("チャネル作成に失敗: %w", err)
		}
		return ch, func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	})
}

func newPublisher(queue string, buffer int, connect connectFunc) *Publisher {
	return &Publisher{
		queue:   queue,
		events:  make(chan application.OrderEvent, buffer),
		connect: connect,
	}
}

// Notify はイベントを送信待ちに積む
func (p *Publisher) Notify(_ context.Context, ev application.OrderEvent) error {
	select {
	case p.events <- ev:
		return nil
	default:
		recordNotification("dropped")
		return ErrBufferFull
	}
}

// Start は ctx がキャンセルされるまで送信待ちのイベントを送る
func (p *Publisher) Start(ctx context.Context) {
	logger.Info("注文イベントの送信を開始", zap.String("queue", p.queue))
	defer p.disconnect()

	for {
		select {
		case <-ctx.Done():
			if n := len(p.events); n > 0 {
				logger.Warn("未送信の注文イベントを破棄しました", zap.Int("count", n))
			}
			return
		case ev := <-p.events:
			if err := p.publish(ctx, ev); err != nil {
				recordNotification("failed")
				logger.Error("注文イベントの送信に失敗",
					zap.String("type", ev.Type), zap.Int64("order_id", ev.OrderID), zap.Error(err))
				continue
			}
			recordNotification("published")
		}
	}
}

// publish は1件送る。失敗した場合は接続を張り直して1回だけ再送する
func (p *Publisher) publish(ctx context.Context, ev application.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt.UTC(),
		Type:         ev.Type,
		Body:         body,
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := p.ensureChannel(); err != nil {
			lastErr = err
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := p.ch.PublishWithContext(pctx, "", p.queue, false, false, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		p.disconnect()
	}
	return lastErr
}

// ensureChannel は必要なら接続し、キューを宣言する（宣言は冪等）
func (p *Publisher) ensureChannel() error {
	if p.ch != nil {
		return nil
	}
	ch, closeFn, err := p.connect()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		closeFn()
		return fmt.Errorf("キュー宣言に失敗: %w", err)
	}
	p.ch, p.close = ch, closeFn
	return nil
}

func (p *Publisher) disconnect() {
	if p.close != nil {
		p.close()
	}
	p.ch, p.close = nil, nil
}

func recordNotification(status string) {
	if m := metrics.Get(); m != nil {
		m.NotificationsTotal.WithLabelValues(status).Inc()
	}
}
