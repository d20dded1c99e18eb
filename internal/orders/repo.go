package orders

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-esim-orders/internal/kv"
	"slices"
	"sync"
)

// Repo maps orders and funding profiles onto the durable store.
type Repo struct {
	Store kv.Store

	// serialises read-modify-write of profile indexes within this process
	profileMu sync.Mutex
}

func NewRepo(s kv.Store) *Repo { return &Repo{Store: s} }

func orderKey(kind Kind, orderID string) string {
	if kind == KindTopUp {
		return fmt.Sprintf(kv.KeyTopUpOrder, orderID)
	}
	return fmt.Sprintf(kv.KeyOrder, orderID)
}

func (r *Repo) GetOrder(ctx context.Context, kind Kind, orderID string) (Order, bool, error) {
	var o Order
	ok, err := r.Store.Get(ctx, orderKey(kind, orderID), &o)
	if err != nil {
		return Order{}, false, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return o, ok, nil
}

func (r *Repo) SaveOrder(ctx context.Context, o Order) error {
	if err := r.Store.Set(ctx, orderKey(o.Kind, o.OrderID), o); err != nil {
		return fmt.Errorf("save order %s: %w", o.OrderID, err)
	}
	return nil
}

func (r *Repo) GetProfile(ctx context.Context, address string) (FundingProfile, bool, error) {
	var p FundingProfile
	ok, err := r.Store.Get(ctx, kv.ProfileKey(address), &p)
	if err != nil {
		return FundingProfile{}, false, fmt.Errorf("get profile %s: %w", address, err)
	}
	return p, ok, nil
}

func (r *Repo) ProfileExists(ctx context.Context, address string) (bool, error) {
	ok, err := r.Store.Exists(ctx, kv.ProfileKey(address))
	if err != nil {
		return false, fmt.Errorf("profile exists %s: %w", address, err)
	}
	return ok, nil
}

func (r *Repo) SaveProfile(ctx context.Context, p FundingProfile) error {
	if err := r.Store.Set(ctx, kv.ProfileKey(p.PublicKey), p); err != nil {
		return fmt.Errorf("save profile %s: %w", p.PublicKey, err)
	}
	return nil
}

// AppendOrderID adds orderID to the profile index for kind. An id already
// present is left alone.
func (r *Repo) AppendOrderID(ctx context.Context, address string, kind Kind, orderID string) error {
	r.profileMu.Lock()
	defer r.profileMu.Unlock()

	p, ok, err := r.GetProfile(ctx, address)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProfileNotFound
	}
	ids := &p.OrderIDs
	if kind == KindTopUp {
		ids = &p.TopUpOrderIDs
	}
	if slices.Contains(*ids, orderID) {
		return nil
	}
	*ids = append(*ids, orderID)
	return r.SaveProfile(ctx, p)
}
