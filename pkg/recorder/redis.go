package recorder

import (
	"context"
	"encoding/json"
	"fmt"

	redis_wrapper "github.com/joripage/lobsim/pkg/infra/redis"
	"github.com/joripage/lobsim/pkg/model"
	"github.com/joripage/lobsim/pkg/orderbook"
	"github.com/redis/go-redis/v9"
)

const defaultMaxTrades = 1000

type RedisConfig struct {
	redis_wrapper.RedisConfig `yaml:",inline"`
	KeyPrefix                 string `yaml:"key_prefix"`
	MaxTrades                 int64  `yaml:"max_trades"`
}

// RedisRecorder keeps a live view of a run: the latest top of book in a hash and
// the most recent trades in a capped list, newest first.
type RedisRecorder struct {
	rdb       redis.Cmdable
	runID     string
	bookKey   string
	tradesKey string
	maxTrades int64
}

func NewRedisRecorder(rdb redis.Cmdable, cfg RedisConfig, runID string) *RedisRecorder {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "lobsim"
	}
	maxTrades := cfg.MaxTrades
	if maxTrades <= 0 {
		maxTrades = defaultMaxTrades
	}
	return &RedisRecorder{
		rdb:       rdb,
		runID:     runID,
		bookKey:   fmt.Sprintf("%s:%s:book", prefix, runID),
		tradesKey: fmt.Sprintf("%s:%s:trades", prefix, runID),
		maxTrades: maxTrades,
	}
}

func (r *RedisRecorder) BookKey() string   { return r.bookKey }
func (r *RedisRecorder) TradesKey() string { return r.tradesKey }

func (r *RedisRecorder) tradeValues(at float64, trades []orderbook.Trade) ([]interface{}, error) {
	values := make([]interface{}, 0, len(trades))
	for _, tr := range trades {
		b, err := json.Marshal(model.NewTrade(r.runID, at, tr))
		if err != nil {
			return nil, err
		}
		values = append(values, b)
	}
	return values, nil
}

func (r *RedisRecorder) RecordTrades(ctx context.Context, at float64, trades []orderbook.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	values, err := r.tradeValues(at, trades)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.tradesKey, values...)
		pipe.LTrim(ctx, r.tradesKey, 0, r.maxTrades-1)
		return nil
	})
	return err
}

func (r *RedisRecorder) RecordBook(ctx context.Context, s BookState) error {
	return r.rdb.HSet(ctx, r.bookKey,
		"timestamp", formatNumber(s.Time),
		"best_bid", formatNumber(s.BestBid),
		"best_ask", formatNumber(s.BestAsk),
		"mid_price", formatNumber(s.MidPrice),
		"inventory", formatNumber(s.Inventory),
	).Err()
}

func (r *RedisRecorder) RecordQuote(ctx context.Context, q QuoteState) error {
	return r.rdb.HSet(ctx, r.bookKey,
		"quote_bid", formatNumber(q.Bid),
		"quote_ask", formatNumber(q.Ask),
		"reservation_price", formatNumber(q.Reservation),
	).Err()
}

// Close leaves the client alone; it belongs to the caller.
func (r *RedisRecorder) Close(context.Context) error {
	return nil
}
