package strategy

import (
	"errors"
	"fmt"
)

var ErrUnknownStrategy = errors.New("unknown quote strategy")

// BookView is the read-only part of the order book a strategy may look at.
type BookView interface {
	MidPrice() float64
	BestBid() float64
	BestAsk() float64
}

// Quote is a target bid/ask pair. A zero Bid or Ask means "do not quote that side".
type Quote struct {
	Bid         float64
	Ask         float64
	Reservation float64
}

func (q Quote) Empty() bool {
	return q.Bid <= 0 && q.Ask <= 0
}

// QuoteStrategy turns the book, the maker's inventory and the simulated time into
// target quotes.
type QuoteStrategy interface {
	Name() string
	Quotes(book BookView, inventory float64, t float64) Quote
}

type Config struct {
	Name    string  `yaml:"name"`
	Gamma   float64 `yaml:"gamma"`
	Sigma   float64 `yaml:"sigma"`
	K       float64 `yaml:"k"`
	Horizon float64 `yaml:"horizon"`
}

// New builds the strategy named in cfg.
func New(cfg Config) (QuoteStrategy, error) {
	switch cfg.Name {
	case "", AvellanedaStoikovName:
		return NewAvellanedaStoikov(cfg.Gamma, cfg.Sigma, cfg.K, cfg.Horizon)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Name)
}
