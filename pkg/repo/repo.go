package repo

import (
	"gorm.io/gorm"
)

type IRepo interface {
	Trade() ITrade
	BookState() IBookState
}

type Repo struct {
	tradeDB *gorm.DB
}

func NewRepo(tradeDB *gorm.DB) IRepo {
	return &Repo{
		tradeDB: tradeDB,
	}
}

func (r *Repo) Trade() ITrade {
	return NewTradeSQLRepo(r.tradeDB)
}

func (r *Repo) BookState() IBookState {
	return NewBookStateSQLRepo(r.tradeDB)
}
