package latency

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/joripage/lobsim/pkg/orderbook"
)

var ErrInvalidConfig = errors.New("invalid latency config")

// Config describes the per-action delay distribution, in simulated seconds.
type Config struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std_dev"`
	Seed   int64   `yaml:"seed"`
}

func (c Config) Validate() error {
	if math.IsNaN(c.Mean) || math.IsInf(c.Mean, 0) {
		return fmt.Errorf("%w: mean must be finite", ErrInvalidConfig)
	}
	if math.IsNaN(c.StdDev) || math.IsInf(c.StdDev, 0) || c.StdDev < 0 {
		return fmt.Errorf("%w: std_dev must be finite and >= 0", ErrInvalidConfig)
	}
	return nil
}

// Scheduler delays new orders and cancellations by an independent normal sample
// each. Independent delays let a cancel overtake the order it targets. Events
// with equal release times come out in submission order.
type Scheduler struct {
	cfg     Config
	rng     *rand.Rand
	queue   eventHeap
	nextSeq uint64
}

func NewScheduler(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// SubmitOrder queues a new order and returns its release time.
func (s *Scheduler) SubmitOrder(order orderbook.Order, now float64) float64 {
	return s.push(Event{Kind: EventNewOrder, Order: order}, now)
}

// SubmitCancellation queues a cancel of orderID and returns its release time.
func (s *Scheduler) SubmitCancellation(orderID uint64, now float64) float64 {
	return s.push(Event{Kind: EventCancel, CancelID: orderID}, now)
}

func (s *Scheduler) push(ev Event, now float64) float64 {
	ev.ReleaseTime = now + s.sampleDelay()
	ev.Seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.queue, ev)
	return ev.ReleaseTime
}

// sampleDelay never returns a negative latency.
func (s *Scheduler) sampleDelay() float64 {
	d := s.cfg.Mean + s.cfg.StdDev*s.rng.NormFloat64()
	if d < 0 {
		return 0
	}
	return d
}

// DrainReady removes and returns every event released at or before now, earliest
// first. Later events stay queued.
func (s *Scheduler) DrainReady(now float64) []Event {
	var ready []Event
	for s.queue.Len() > 0 && s.queue[0].ReleaseTime <= now {
		ready = append(ready, heap.Pop(&s.queue).(Event))
	}
	return ready
}

func (s *Scheduler) Len() int {
	return s.queue.Len()
}

func (s *Scheduler) NextReleaseTime() (float64, bool) {
	if s.queue.Len() == 0 {
		return 0, false
	}
	return s.queue[0].ReleaseTime, true
}
