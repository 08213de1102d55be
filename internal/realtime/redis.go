// Package realtime доставляет уведомления об изменениях таблиц через
// Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/dental-lab/internal/model"
)

const channelPrefix = "realtime:"

// Channel возвращает имя канала Redis для таблицы.
func Channel(table string) string {
	return channelPrefix + table
}

// RedisFeed публикует и принимает уведомления об изменениях, по одному
// каналу на таблицу.
type RedisFeed struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisFeed подключается к Redis и проверяет соединение.
func NewRedisFeed(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*RedisFeed, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{client: client, logger: logger}, nil
}

// Publish отправляет уведомление в канал его таблицы.
func (f *RedisFeed) Publish(ctx context.Context, ch model.Change) error {
	if ch.Table == "" {
		return errors.New("change without table")
	}

	msg, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	if err := f.client.Publish(ctx, Channel(ch.Table), msg).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe подписывается на каналы таблиц и передаёт уведомления в handle.
// Метод блокируется до отмены контекста.
func (f *RedisFeed) Subscribe(ctx context.Context, tables []string, handle func(model.Change)) error {
	channels := make([]string, 0, len(tables))
	for _, t := range tables {
		channels = append(channels, Channel(t))
	}

	sub := f.client.Subscribe(ctx, channels...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe: %w", err)
	}
	f.logger.Info("subscribed to redis channels", zap.Strings("channels", channels))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("redis subscription closed")
			}
			ch, err := decode(msg.Channel, msg.Payload)
			if err != nil {
				f.logger.Error("decode change error", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			handle(ch)
		}
	}
}

// Close закрывает соединение с Redis.
func (f *RedisFeed) Close() error {
	return f.client.Close()
}

func decode(channel, payload string) (model.Change, error) {
	var ch model.Change
	if err := json.Unmarshal([]byte(payload), &ch); err != nil {
		return ch, fmt.Errorf("decode payload: %w", err)
	}
	if ch.Table == "" {
		ch.Table = strings.TrimPrefix(channel, channelPrefix)
	}
	if ch.Table == "" {
		return ch, errors.New("table is not specified")
	}
	return ch, nil
}
