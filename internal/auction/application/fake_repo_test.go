package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
	"github.com/shopspring/decimal"
)

// fakeLotRepo keeps lots in memory and applies the same row filter as the
// conditional bid update.
type fakeLotRepo struct {
	mu     sync.Mutex
	lots   map[int64]*domain.Lot
	nextID int64
	now    func() time.Time

	err error
	// runs right before UpdateCurrentPrice evaluates its filter
	beforeBidUpdate func(r *fakeLotRepo)

	bidUpdates int
}

func newFakeLotRepo(now func() time.Time) *fakeLotRepo {
	return &fakeLotRepo{lots: make(map[int64]*domain.Lot), nextID: 1, now: now}
}

func cloneLot(l *domain.Lot) *domain.Lot {
	cp := *l
	if l.CurrentPrice != nil {
		p := *l.CurrentPrice
		cp.CurrentPrice = &p
	}
	return &cp
}

func (r *fakeLotRepo) EnsureSchema(context.Context) error { return r.err }

func (r *fakeLotRepo) List(context.Context) ([]*domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := []*domain.Lot{}
	for _, l := range r.lots {
		out = append(out, cloneLot(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeLotRepo) FindByID(_ context.Context, id int64) (*domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if l, ok := r.lots[id]; ok {
		return cloneLot(l), nil
	}
	return nil, nil
}

func (r *fakeLotRepo) Create(_ context.Context, lot *domain.Lot) (*domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	stored := cloneLot(lot)
	stored.ID = r.nextID
	stored.CreatedAt = r.now()
	r.nextID++
	r.lots[stored.ID] = stored
	return cloneLot(stored), nil
}

func (r *fakeLotRepo) Update(_ context.Context, id int64, lot *domain.Lot) (*domain.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	existing, ok := r.lots[id]
	if !ok {
		return nil, nil
	}
	stored := cloneLot(lot)
	stored.ID = id
	stored.CreatedAt = existing.CreatedAt
	r.lots[id] = stored
	return cloneLot(stored), nil
}

func (r *fakeLotRepo) Remove(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if _, ok := r.lots[id]; !ok {
		return false, nil
	}
	delete(r.lots, id)
	return true, nil
}

func (r *fakeLotRepo) UpdateCurrentPrice(_ context.Context, id int64, amount decimal.Decimal) (*domain.Lot, error) {
	if r.beforeBidUpdate != nil {
		r.beforeBidUpdate(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bidUpdates++
	if r.err != nil {
		return nil, r.err
	}
	l, ok := r.lots[id]
	if !ok {
		return nil, nil
	}
	if !amount.GreaterThan(l.StartPrice) ||
		(l.CurrentPrice != nil && !l.CurrentPrice.LessThan(amount)) ||
		(l.AuctionEndDate != nil && !l.AuctionEndDate.After(r.now())) {
		return nil, nil
	}
	l.CurrentPrice = &amount
	return cloneLot(l), nil
}

// put stores lot as-is, bypassing the service.
func (r *fakeLotRepo) put(lot *domain.Lot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lots[lot.ID] = cloneLot(lot)
	if lot.ID >= r.nextID {
		r.nextID = lot.ID + 1
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	lots []*domain.Lot
}

func (n *recordingNotifier) NotifyLotUpdated(lot *domain.Lot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lots = append(n.lots, cloneLot(lot))
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.lots)
}
