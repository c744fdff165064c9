package repo

import (
	"context"

	"github.com/joripage/lobsim/pkg/model"
)

type ITrade interface {
	Create(ctx context.Context, record *model.Trade) (*model.Trade, error)
	BulkCreate(ctx context.Context, records []*model.Trade) ([]*model.Trade, error)
	ListByRun(ctx context.Context, runID string) ([]*model.Trade, error)
}

type IBookState interface {
	Create(ctx context.Context, record *model.BookState) (*model.BookState, error)
	BulkCreate(ctx context.Context, records []*model.BookState) ([]*model.BookState, error)
}
