package simulator

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/joripage/lobsim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

var ErrInvalidNoiseConfig = errors.New("invalid noise config")

type NoiseConfig struct {
	// ArrivalRate is the Poisson intensity of background orders, per second.
	ArrivalRate      float64 `yaml:"arrival_rate"`
	InitialFairPrice float64 `yaml:"initial_fair_price"`
	PriceStep        float64 `yaml:"price_step"`
	MinSize          float64 `yaml:"min_size"`
	MaxSize          float64 `yaml:"max_size"`
	AggressiveRatio  float64 `yaml:"aggressive_ratio"`
	Spread           float64 `yaml:"spread"`
	// TickSize rounds passive prices; 0 leaves them as drawn.
	TickSize float64 `yaml:"tick_size"`
	Seed     int64   `yaml:"seed"`
}

func DefaultNoiseConfig() NoiseConfig {
	return NoiseConfig{
		ArrivalRate:      0.5,
		InitialFairPrice: 100,
		PriceStep:        0.5,
		MinSize:          1,
		MaxSize:          10,
		AggressiveRatio:  0.3,
		Spread:           1.0,
		TickSize:         0.01,
		Seed:             12345,
	}
}

func (c NoiseConfig) Validate() error {
	switch {
	case !finite(c.ArrivalRate) || c.ArrivalRate < 0:
		return fmt.Errorf("%w: arrival_rate %v", ErrInvalidNoiseConfig, c.ArrivalRate)
	case !finite(c.InitialFairPrice) || c.InitialFairPrice <= 0:
		return fmt.Errorf("%w: initial_fair_price %v", ErrInvalidNoiseConfig, c.InitialFairPrice)
	case !finite(c.PriceStep) || c.PriceStep < 0:
		return fmt.Errorf("%w: price_step %v", ErrInvalidNoiseConfig, c.PriceStep)
	case !finite(c.MinSize) || !finite(c.MaxSize) || c.MinSize < 1 || c.MaxSize < c.MinSize:
		return fmt.Errorf("%w: size range [%v, %v)", ErrInvalidNoiseConfig, c.MinSize, c.MaxSize)
	case math.IsNaN(c.AggressiveRatio) || c.AggressiveRatio < 0 || c.AggressiveRatio > 1:
		return fmt.Errorf("%w: aggressive_ratio %v", ErrInvalidNoiseConfig, c.AggressiveRatio)
	case !finite(c.Spread) || c.Spread < 0:
		return fmt.Errorf("%w: spread %v", ErrInvalidNoiseConfig, c.Spread)
	case !finite(c.TickSize) || c.TickSize < 0:
		return fmt.Errorf("%w: tick_size %v", ErrInvalidNoiseConfig, c.TickSize)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NoiseGenerator produces background order flow around a randomly walking fair
// price. All randomness comes from its own seeded source, so two generators with
// the same config emit the same flow.
type NoiseGenerator struct {
	cfg         NoiseConfig
	rng         *rand.Rand
	tick        decimal.Decimal
	fair        float64
	nextArrival float64
}

func NewNoiseGenerator(cfg NoiseConfig) (*NoiseGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &NoiseGenerator{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		tick: decimal.NewFromFloat(cfg.TickSize),
		fair: cfg.InitialFairPrice,
	}, nil
}

func (g *NoiseGenerator) FairPrice() float64 {
	return g.fair
}

// Generate returns the orders whose arrival time is at or before now. Ids and
// timestamps are left for the caller to assign.
func (g *NoiseGenerator) Generate(now float64) []orderbook.Order {
	if g.cfg.ArrivalRate <= 0 {
		return nil
	}
	var out []orderbook.Order
	for g.nextArrival <= now {
		out = append(out, g.next())
		g.nextArrival += g.rng.ExpFloat64() / g.cfg.ArrivalRate
	}
	return out
}

func (g *NoiseGenerator) next() orderbook.Order {
	g.fair += g.uniform(-g.cfg.PriceStep, g.cfg.PriceStep)

	side := orderbook.BUY
	if g.rng.Intn(2) == 1 {
		side = orderbook.SELL
	}
	qty := math.Floor(g.uniform(g.cfg.MinSize, g.cfg.MaxSize))

	if g.rng.Float64() < g.cfg.AggressiveRatio {
		return orderbook.Order{Side: side, Type: orderbook.MARKET, Qty: qty}
	}

	price := g.fair + g.cfg.Spread/2
	if side == orderbook.BUY {
		price = g.fair - g.cfg.Spread/2
	}
	return orderbook.Order{
		Side:  side,
		Type:  orderbook.LIMIT,
		Price: g.roundToTick(price),
		Qty:   qty,
	}
}

func (g *NoiseGenerator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.rng.Float64()
}

func (g *NoiseGenerator) roundToTick(price float64) float64 {
	if g.tick.IsZero() {
		return price
	}
	return decimal.NewFromFloat(price).Div(g.tick).Round(0).Mul(g.tick).InexactFloat64()
}
