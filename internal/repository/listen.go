package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/dental-lab/internal/model"
)

const channelPrefix = "realtime_"

const resubscribeDelay = 3 * time.Second

// Subscribe слушает уведомления pg_notify по каналам realtime_<table> и
// передаёт их в handle. При обрыве соединения подписка восстанавливается.
// Метод блокируется до отмены контекста.
func (r *PostgresRepository) Subscribe(ctx context.Context, tables []string, handle func(model.Change)) error {
	for {
		err := r.listen(ctx, tables, handle)
		if ctx.Err() != nil {
			return nil
		}

		r.logger.Warn("change feed interrupted, resubscribing", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(resubscribeDelay):
		}
	}
}

func (r *PostgresRepository) listen(ctx context.Context, tables []string, handle func(model.Change)) error {
	pooled, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	// соединение в состоянии LISTEN не возвращается в пул
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	for _, t := range tables {
		channel := pgx.Identifier{channelPrefix + t}.Sanitize()
		if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
			return fmt.Errorf("listen %s: %w", t, err)
		}
	}
	r.logger.Info("listening for changes", zap.Strings("tables", tables))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		ch, err := decodeNotification(n.Channel, n.Payload)
		if err != nil {
			r.logger.Error("decode notification error", zap.String("channel", n.Channel), zap.Error(err))
			continue
		}
		handle(ch)
	}
}

// decodeNotification разбирает полезную нагрузку уведомления. Имя таблицы
// берётся из канала, если в нагрузке его нет.
func decodeNotification(channel, payload string) (model.Change, error) {
	var ch model.Change
	if err := json.Unmarshal([]byte(payload), &ch); err != nil {
		return ch, fmt.Errorf("decode payload: %w", err)
	}
	if ch.Table == "" {
		if len(channel) <= len(channelPrefix) {
			return ch, errors.New("table is not specified")
		}
		ch.Table = channel[len(channelPrefix):]
	}
	if isNull(ch.New) {
		ch.New = nil
	}
	if isNull(ch.Old) {
		ch.Old = nil
	}
	return ch, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
