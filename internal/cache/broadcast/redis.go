package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	retryMin = 100 * time.Millisecond
	retryMax = 30 * time.Second
)

// Redis: рассылка событий через Redis pub/sub.
type Redis struct {
	rdb     *redis.Client
	channel string
	origin  string
	log     *slog.Logger

	retryMin time.Duration
	retryMax time.Duration
}

// NewRedis создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет соединение на старте.
func NewRedis(ctx context.Context, redisURL, channel string, log *slog.Logger) (*Redis, error) {
	if channel == "" {
		return nil, fmt.Errorf("broadcast: empty channel")
	}

	if log == nil {
		log = slog.Default()
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("broadcast: parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("broadcast: redis ping: %w", err)
	}

	return &Redis{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log,

		retryMin: retryMin,
		retryMax: retryMax,
	}, nil
}

// Origin: идентификатор этого инстанса в событиях.
func (r *Redis) Origin() string { return r.origin }

// Publish публикует событие в канал.
func (r *Redis) Publish(ctx context.Context, ev Event) error {
	ev.Origin = r.origin

	payload, err := encode(ev)
	if err != nil {
		return err
	}

	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("broadcast: publish: %w", err)
	}

	return nil
}

// Run подписывается на канал и применяет события других инстансов.
// Собственные события и битые сообщения пропускаются.
// Если подписка не удалась или оборвалась, Run переподписывается
// с экспоненциальной паузой от retryMin до retryMax. Возвращает nil после отмены ctx.
func (r *Redis) Run(ctx context.Context, apply ApplyFunc) error {
	delay := r.retryMin

	for {
		subscribed, err := r.listen(ctx, apply)
		if ctx.Err() != nil {
			return nil
		}

		if subscribed {
			delay = r.retryMin
		}

		r.log.Warn("broadcast_subscribe_failed",
			slog.String("channel", r.channel),
			slog.String("error", err.Error()),
			slog.Duration("retry_in", delay),
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}

		delay = min(delay*2, r.retryMax)
	}
}

var errChannelClosed = errors.New("broadcast: subscription channel closed")

// listen держит одну подписку до её обрыва или отмены ctx.
func (r *Redis) listen(ctx context.Context, apply ApplyFunc) (bool, error) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Receive ждёт подтверждения подписки.
	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("broadcast: subscribe: %w", err)
	}

	r.log.Info("broadcast_subscribed", slog.String("channel", r.channel), slog.String("origin", r.origin))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return true, errChannelClosed
			}

			ev, err := decode(msg.Payload)
			if err != nil {
				r.log.Warn("broadcast_bad_message", slog.String("error", err.Error()))
				continue
			}

			if ev.Origin == r.origin {
				continue
			}

			apply(ctx, ev)
		}
	}
}

// Close закрывает клиент Redis.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
