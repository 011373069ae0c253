package redisfeed_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/pair-arbitrage/business/arbitrage/infra/redisfeed"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/config"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

func receipt(id string, profit uint64) *domain.Receipt {
	return &domain.Receipt{
		ID:         id,
		InputAsset: "TKA",
		Direction:  domain.AFirst,
		AmountIn:   ledger.New(1000),
		Final:      ledger.New(1000 + profit),
		Profit:     ledger.New(profit),
		Trail:      []domain.State{domain.StateIdle, domain.StateSimulated, domain.StateSettled},
		FinishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_Record(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	pub := redisfeed.NewPublisher(config.FeedConfig{Addr: mr.Addr(), Stream: "arbitrage:executions", MaxLen: 100})
	defer pub.Close()
	ctx := context.Background()
	require.NoError(t, pub.Ping(ctx))

	require.NoError(t, pub.Record(ctx, receipt("r-1", 796)))
	require.NoError(t, pub.Record(ctx, receipt("r-2", 122)))

	recent, err := pub.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "r-2", recent[0]["id"])
	assert.Equal(t, "122", recent[0]["profit"])
	assert.Equal(t, "A->B", recent[1]["direction"])

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	last, err := rdb.HGetAll(ctx, redisfeed.LastKey).Result()
	require.NoError(t, err)
	assert.Equal(t, "r-2", last["id"])
	assert.Equal(t, "false", last["rolled_back"])
}

func TestPublisher_RecordFailsWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	pub := redisfeed.NewPublisher(config.FeedConfig{Addr: addr, Stream: "arbitrage:executions"})
	defer pub.Close()

	err = pub.Record(context.Background(), receipt("r-1", 1))
	assert.True(t, apperror.HasCode(err, apperror.CodePublishFailed))
}
