package repo

import (
	"context"

	"github.com/joripage/lobsim/pkg/model"
	"gorm.io/gorm"
)

type BookStateSQLRepo struct {
	db *gorm.DB
}

func NewBookStateSQLRepo(db *gorm.DB) *BookStateSQLRepo {
	return &BookStateSQLRepo{
		db: db,
	}
}

func (r *BookStateSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *BookStateSQLRepo) Create(ctx context.Context, record *model.BookState) (*model.BookState, error) {
	return record, r.dbWithContext(ctx).Create(record).Error
}

func (r *BookStateSQLRepo) BulkCreate(ctx context.Context, records []*model.BookState) ([]*model.BookState, error) {
	if len(records) == 0 {
		return records, nil
	}
	return records, r.dbWithContext(ctx).CreateInBatches(records, 500).Error
}
