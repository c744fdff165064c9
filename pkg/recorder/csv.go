package recorder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joripage/lobsim/pkg/model"
	"github.com/joripage/lobsim/pkg/orderbook"
)

const (
	TradesFile = "trades.csv"
	BookFile   = "book.csv"
	QuotesFile = "quotes.csv"
)

var (
	tradesHeader = []string{"timestamp", "price", "quantity", "side", "resting_id", "aggressive_id"}
	bookHeader   = []string{"timestamp", "best_bid", "best_ask", "mid_price", "inventory"}
	quotesHeader = []string{"timestamp", "bid_price", "ask_price", "reservation_price"}
)

type csvFile struct {
	f *os.File
	w *csv.Writer
}

func createCSV(path string, header []string) (*csvFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &csvFile{f: f, w: w}, nil
}

func (c *csvFile) close() error {
	c.w.Flush()
	return errors.Join(c.w.Error(), c.f.Close())
}

// CSVRecorder writes trades.csv, book.csv and quotes.csv into one directory.
type CSVRecorder struct {
	mu     sync.Mutex
	trades *csvFile
	book   *csvFile
	quotes *csvFile
}

// NewCSVRecorder creates dir if needed and truncates the three files in it.
func NewCSVRecorder(dir string) (*CSVRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	r := &CSVRecorder{}
	var err error
	if r.trades, err = createCSV(filepath.Join(dir, TradesFile), tradesHeader); err != nil {
		return nil, fmt.Errorf("create %s: %w", TradesFile, err)
	}
	if r.book, err = createCSV(filepath.Join(dir, BookFile), bookHeader); err != nil {
		_ = r.trades.close()
		return nil, fmt.Errorf("create %s: %w", BookFile, err)
	}
	if r.quotes, err = createCSV(filepath.Join(dir, QuotesFile), quotesHeader); err != nil {
		_ = r.trades.close()
		_ = r.book.close()
		return nil, fmt.Errorf("create %s: %w", QuotesFile, err)
	}
	return r, nil
}

func (r *CSVRecorder) RecordTrades(_ context.Context, at float64, trades []orderbook.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tr := range trades {
		err := r.trades.w.Write([]string{
			formatNumber(at),
			formatNumber(tr.Price),
			formatNumber(tr.Qty),
			model.SideLabel(tr.AggressiveSide),
			strconv.FormatUint(tr.RestingOrderID, 10),
			strconv.FormatUint(tr.AggressiveOrderID, 10),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *CSVRecorder) RecordBook(_ context.Context, s BookState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.book.w.Write([]string{
		formatNumber(s.Time),
		formatNumber(s.BestBid),
		formatNumber(s.BestAsk),
		formatNumber(s.MidPrice),
		formatNumber(s.Inventory),
	})
}

func (r *CSVRecorder) RecordQuote(_ context.Context, q QuoteState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quotes.w.Write([]string{
		formatNumber(q.Time),
		formatNumber(q.Bid),
		formatNumber(q.Ask),
		formatNumber(q.Reservation),
	})
}

// Close flushes and closes all three files.
func (r *CSVRecorder) Close(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.trades.close(), r.book.close(), r.quotes.close())
}
