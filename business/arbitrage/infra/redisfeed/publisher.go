// Package redisfeed publishes execution receipts to a Redis stream.
package redisfeed

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/config"
)

// LastKey holds the most recent receipt as a hash.
const LastKey = "arbitrage:last"

type Publisher struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewPublisher(cfg config.FeedConfig) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	return NewPublisherWithClient(rdb, cfg.Stream, cfg.MaxLen)
}

func NewPublisherWithClient(rdb *redis.Client, stream string, maxLen int64) *Publisher {
	return &Publisher{rdb: rdb, stream: stream, maxLen: maxLen}
}

// Record appends r to the stream and overwrites the last-receipt hash.
func (p *Publisher) Record(ctx context.Context, r *domain.Receipt) error {
	fields := Fields(r)

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	pipe := p.rdb.TxPipeline()
	pipe.XAdd(ctx, args)
	pipe.HSet(ctx, LastKey, fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperror.New(apperror.CodePublishFailed, apperror.WithContext(p.stream), apperror.WithCause(err))
	}
	return nil
}

// Recent returns up to n stream entries, newest first.
func (p *Publisher) Recent(ctx context.Context, n int64) ([]map[string]any, error) {
	msgs, err := p.rdb.XRevRangeN(ctx, p.stream, "+", "-", n).Result()
	if err != nil {
		return nil, apperror.New(apperror.CodePublishFailed, apperror.WithContext(p.stream), apperror.WithCause(err))
	}
	out := make([]map[string]any, len(msgs))
	for i, m := range msgs {
		out[i] = m.Values
	}
	return out, nil
}

// Ping checks the connection.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// Fields flattens r into stream entry fields.
func Fields(r *domain.Receipt) map[string]any {
	trail := make([]string, len(r.Trail))
	for i, s := range r.Trail {
		trail[i] = string(s)
	}
	return map[string]any{
		"id":           r.ID,
		"caller":       r.Caller.Hex(),
		"asset":        r.InputAsset,
		"direction":    r.Direction.Route(),
		"amount_in":    r.AmountIn.String(),
		"intermediate": r.Intermediate.String(),
		"final":        r.Final.String(),
		"profit":       r.Profit.String(),
		"settled":      strconv.FormatBool(r.Succeeded()),
		"rolled_back":  strconv.FormatBool(r.RolledBack),
		"error_code":   r.ErrorCode,
		"trail":        strings.Join(trail, ","),
		"ts_ms":        r.FinishedAt.UnixMilli(),
	}
}
