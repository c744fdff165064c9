package repo

import (
	"context"

	"github.com/joripage/lobsim/pkg/model"
	"gorm.io/gorm"
)

type TradeSQLRepo struct {
	db *gorm.DB
}

func NewTradeSQLRepo(db *gorm.DB) *TradeSQLRepo {
	return &TradeSQLRepo{
		db: db,
	}
}

func (r *TradeSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *TradeSQLRepo) Create(ctx context.Context, record *model.Trade) (*model.Trade, error) {
	return record, r.dbWithContext(ctx).Create(record).Error
}

func (r *TradeSQLRepo) BulkCreate(ctx context.Context, records []*model.Trade) ([]*model.Trade, error) {
	if len(records) == 0 {
		return records, nil
	}
	return records, r.dbWithContext(ctx).CreateInBatches(records, 500).Error
}

func (r *TradeSQLRepo) ListByRun(ctx context.Context, runID string) ([]*model.Trade, error) {
	var out []*model.Trade
	err := r.dbWithContext(ctx).
		Where("run_id = ?", runID).
		Order("sim_time, id").
		Find(&out).Error
	return out, err
}
