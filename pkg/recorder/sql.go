package recorder

import (
	"context"

	"github.com/joripage/lobsim/pkg/model"
	"github.com/joripage/lobsim/pkg/orderbook"
	"github.com/joripage/lobsim/pkg/repo"
)

// SQLRecorder writes trades and book states straight to the trade store.
type SQLRecorder struct {
	trade     repo.ITrade
	bookState repo.IBookState
	runID     string
}

func NewSQLRecorder(r repo.IRepo, runID string) *SQLRecorder {
	return &SQLRecorder{
		trade:     r.Trade(),
		bookState: r.BookState(),
		runID:     runID,
	}
}

func (r *SQLRecorder) RecordTrades(ctx context.Context, at float64, trades []orderbook.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	records := make([]*model.Trade, len(trades))
	for i, tr := range trades {
		records[i] = model.NewTrade(r.runID, at, tr)
	}
	_, err := r.trade.BulkCreate(ctx, records)
	return err
}

func (r *SQLRecorder) RecordBook(ctx context.Context, s BookState) error {
	_, err := r.bookState.Create(ctx, model.NewBookState(r.runID, s.Time, s.BestBid, s.BestAsk, s.MidPrice, s.Inventory))
	return err
}

func (r *SQLRecorder) RecordQuote(context.Context, QuoteState) error {
	return nil
}

func (r *SQLRecorder) Close(context.Context) error {
	return nil
}
