package strategy

import (
	"errors"
	"fmt"
	"math"
)

const AvellanedaStoikovName = "avellaneda_stoikov"

var ErrInvalidParams = errors.New("invalid strategy parameters")

// AvellanedaStoikov quotes symmetrically around an inventory-skewed reservation
// price.
type AvellanedaStoikov struct {
	Gamma   float64 // risk aversion
	Sigma   float64 // volatility
	K       float64 // order arrival intensity
	Horizon float64 // session length T
}

func NewAvellanedaStoikov(gamma, sigma, k, horizon float64) (*AvellanedaStoikov, error) {
	if !(gamma > 0) || !(k > 0) {
		return nil, fmt.Errorf("%w: gamma and k must be > 0", ErrInvalidParams)
	}
	if sigma < 0 || horizon < 0 {
		return nil, fmt.Errorf("%w: sigma and horizon must be >= 0", ErrInvalidParams)
	}
	return &AvellanedaStoikov{Gamma: gamma, Sigma: sigma, K: k, Horizon: horizon}, nil
}

func (s *AvellanedaStoikov) Name() string {
	return AvellanedaStoikovName
}

// ReservationPrice is r = mid - q * gamma * sigma^2 * (T - t), with T - t floored at 0.
func (s *AvellanedaStoikov) ReservationPrice(mid, inventory, t float64) float64 {
	remaining := math.Max(0, s.Horizon-t)
	return mid - inventory*s.Gamma*s.Sigma*s.Sigma*remaining
}

// HalfSpread is ln(1 + gamma/k) / gamma.
func (s *AvellanedaStoikov) HalfSpread() float64 {
	return math.Log(1+s.Gamma/s.K) / s.Gamma
}

func (s *AvellanedaStoikov) Quotes(book BookView, inventory float64, t float64) Quote {
	mid := book.MidPrice()
	if mid == 0 {
		return Quote{}
	}

	r := s.ReservationPrice(mid, inventory, t)
	half := s.HalfSpread()
	return Quote{
		Bid:         r - half,
		Ask:         r + half,
		Reservation: r,
	}
}
