package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"resume-ats/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var errNoChannel = errors.New("无法获取RabbitMQ通道")

// RabbitMQ 上传消息的发布与消费。发布通道经 sync.Pool 复用，
// 每个消费者独占一个设置了 QoS 的通道。
type RabbitMQ struct {
	conn   *amqp.Connection
	pool   sync.Pool
	cfg    *config.RabbitMQConfig
	logger zerolog.Logger

	declareMu sync.Mutex
	declared  map[string]struct{} // exchange/queue/binding 声明缓存

	publishMu sync.Mutex
}

// NewRabbitMQ 连接 RabbitMQ 并验证可以打开通道
func NewRabbitMQ(cfg *config.RabbitMQConfig, logger zerolog.Logger) (*RabbitMQ, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}
	logger = logger.With().Str("component", "rabbitmq").Logger()

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	r := &RabbitMQ{
		conn:     conn,
		cfg:      cfg,
		logger:   logger,
		declared: make(map[string]struct{}),
	}
	ch, err := r.acquire()
	if err != nil {
		conn.Close()
		return nil, err
	}
	r.release(ch)

	logger.Info().Msg("成功连接到RabbitMQ服务器")
	return r, nil
}

// acquire 从池中取出未关闭的通道，没有时新建
func (r *RabbitMQ) acquire() (*amqp.Channel, error) {
	for {
		v := r.pool.Get()
		if v == nil {
			break
		}
		if ch := v.(*amqp.Channel); !ch.IsClosed() {
			return ch, nil
		}
	}
	ch, err := r.conn.Channel()
	if err != nil {
		r.logger.Error().Err(err).Msg("创建RabbitMQ通道失败")
		return nil, fmt.Errorf("%w: %v", errNoChannel, err)
	}
	return ch, nil
}

func (r *RabbitMQ) release(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.pool.Put(ch)
	}
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// declareOnce 以 key 去重执行一次声明
func (r *RabbitMQ) declareOnce(key string, declare func(ch *amqp.Channel) error) error {
	r.declareMu.Lock()
	defer r.declareMu.Unlock()
	if _, ok := r.declared[key]; ok {
		return nil
	}

	ch, err := r.acquire()
	if err != nil {
		return err
	}
	defer r.release(ch)

	if err := declare(ch); err != nil {
		return err
	}
	r.declared[key] = struct{}{}
	return nil
}

// SetupUploadTopology 声明持久化的上传 exchange(direct)、队列与绑定
func (r *RabbitMQ) SetupUploadTopology() error {
	exchange, queue, routingKey := r.cfg.UploadExchange, r.cfg.UploadQueue, r.cfg.UploadRoutingKey
	if exchange == "" || queue == "" {
		return fmt.Errorf("上传 exchange 与队列名称不能为空")
	}

	err := r.declareOnce("exchange:"+exchange, func(ch *amqp.Channel) error {
		if err := ch.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("声明exchange %s 失败: %w", exchange, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	err = r.declareOnce("queue:"+queue, func(ch *amqp.Channel) error {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("声明队列 %s 失败: %w", queue, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	err = r.declareOnce("binding:"+exchange+":"+queue+":"+routingKey, func(ch *amqp.Channel) error {
		if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("绑定队列 %s 失败: %w", queue, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info().Str("exchange", exchange).Str("queue", queue).Str("routing_key", routingKey).Msg("上传消息拓扑已就绪")
	return nil
}

// PublishMessage 发布 JSON 消息体，persistent 为 true 时消息持久化
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	ch, err := r.acquire()
	if err != nil {
		return err
	}
	defer r.release(ch)

	mode := amqp.Transient
	if persistent {
		mode = amqp.Persistent
	}
	return ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		DeliveryMode: mode,
		ContentType:  "application/json",
		Body:         message,
		Timestamp:    time.Now(),
	})
}

// PublishUpload 直接发布上传消息，未经发件箱
func (r *RabbitMQ) PublishUpload(ctx context.Context, msg DocumentUploadMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化上传消息失败: %w", err)
	}
	return r.PublishMessage(ctx, r.cfg.UploadExchange, r.cfg.UploadRoutingKey, body, true)
}

// StartConsumer 在独立通道上消费 queueName。handler 返回 true 时确认消息，
// 返回 false 时拒绝并重新入队。关闭返回的通道即停止消费。
func (r *RabbitMQ) StartConsumer(queueName string, prefetchCount int, handler func([]byte) bool) (chan<- struct{}, error) {
	// 消费通道设置了 QoS，不进入发布池
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNoChannel, err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("设置QoS失败: %w", err)
	}
	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("注册消费者失败: %w", err)
	}

	stopCh := make(chan struct{})
	log := r.logger.With().Str("queue", queueName).Logger()
	go func() {
		defer ch.Close()
		log.Info().Int("prefetch", prefetchCount).Msg("RabbitMQ消费者已启动")
		for {
			select {
			case <-stopCh:
				log.Info().Msg("RabbitMQ消费者已停止")
				return
			case d, ok := <-deliveries:
				if !ok {
					log.Warn().Msg("RabbitMQ投递通道已关闭")
					return
				}
				settle(log, d, handler(d.Body))
			}
		}
	}()

	return stopCh, nil
}

func settle(log zerolog.Logger, d amqp.Delivery, ack bool) {
	var err error
	if ack {
		err = d.Ack(false)
	} else {
		err = d.Nack(false, true)
	}
	if err != nil {
		log.Error().Err(err).Bool("ack", ack).Uint64("delivery_tag", d.DeliveryTag).Msg("确认消息失败")
	}
}
