package orders

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-esim-orders/internal/airalo"
	"github.com/ariefcatur/go-esim-orders/internal/kv"
	"github.com/ariefcatur/go-esim-orders/internal/settlement"
	"github.com/raulk/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"math/rand/v2"
	"testing"
)

// coinFlipSettlement and coinFlipProvider succeed or fail at random, so a
// run of ticks walks an arbitrary path through the saga.
type coinFlipSettlement struct{ rng *rand.Rand }

func (s coinFlipSettlement) Convert(_ context.Context, fiat decimal.Decimal) (decimal.Decimal, error) {
	return fiat.Div(decimal.NewFromInt(150)), nil
}

func (s coinFlipSettlement) HasSufficientBalance(context.Context, string, decimal.Decimal) (bool, error) {
	switch s.rng.IntN(3) {
	case 0:
		return false, errUpstream
	case 1:
		return false, nil
	}
	return true, nil
}

func (s coinFlipSettlement) Sweep(context.Context, string, decimal.Decimal) (string, error) {
	if s.rng.IntN(2) == 0 {
		return "", settlement.ErrSettlementFailed
	}
	return "sig", nil
}

type coinFlipProvider struct{ rng *rand.Rand }

func (p coinFlipProvider) Provision(context.Context, string, int) (airalo.SIM, error) {
	if p.rng.IntN(2) == 0 {
		return airalo.SIM{}, errUpstream
	}
	return airalo.SIM{ICCID: "8944000000000000001"}, nil
}

func (p coinFlipProvider) TopUp(context.Context, string, string) (airalo.TopUp, error) {
	if p.rng.IntN(2) == 0 {
		return airalo.TopUp{}, errUpstream
	}
	return airalo.TopUp{ID: "t"}, nil
}

func (p coinFlipProvider) Usage(context.Context, string) (json.RawMessage, error) {
	return nil, errUpstream
}

func TestTransitionsFollowGraph(t *testing.T) {
	ctx := context.Background()
	for seed := uint64(1); seed <= 200; seed++ {
		rng := rand.New(rand.NewPCG(seed, 42))
		repo := NewRepo(kv.NewMemory())
		require.NoError(t, repo.SaveProfile(ctx, FundingProfile{PublicKey: fundingAddr, PrivateKey: fundingSecret}))
		pub := &recordingPublisher{}
		m := NewMachine(repo, coinFlipSettlement{rng}, coinFlipProvider{rng}, pub, clock.NewMock(), Config{}, nil)

		kind := KindPurchase
		req := purchase("12.34")
		if seed%2 == 0 {
			kind = KindTopUp
			req.Kind, req.ICCID = KindTopUp, "8944000000000000009"
		}
		o, err := m.Create(ctx, req)
		require.NoError(t, err)

		for range 12 {
			if rng.IntN(10) == 0 {
				m.expire(ctx, kind, o.OrderID)
				continue
			}
			_, err := m.Tick(ctx, kind, o.OrderID)
			require.NoError(t, err)
		}
		m.Close()

		last := StatusPending
		for _, c := range pub.statusChanges() {
			require.Equal(t, last, c.From, "seed %d", seed)
			require.True(t, CanTransition(c.From, c.To), "seed %d: %s -> %s", seed, c.From, c.To)
			last = c.To
		}

		got, ok, err := repo.GetOrder(ctx, kind, o.OrderID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, last, got.Status, "seed %d", seed)
		require.True(t, got.PaymentInNativeUnits.Equal(o.PaymentInNativeUnits), "seed %d", seed)
		require.False(t, got.UpdatedAt.Before(got.CreatedAt), "seed %d", seed)

		p, _, err := repo.GetProfile(ctx, fundingAddr)
		require.NoError(t, err)
		indexed := len(p.OrderIDs) + len(p.TopUpOrderIDs)
		if got.Status == StatusProvisioned {
			require.Equal(t, 1, indexed, "seed %d", seed)
		} else {
			require.Zero(t, indexed, "seed %d", seed)
		}
	}
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StatusPending, StatusPaid))
	require.True(t, CanTransition(StatusPaidToMaster, StatusFailed))
	require.False(t, CanTransition(StatusPending, StatusPaidToMaster))
	require.False(t, CanTransition(StatusPaid, StatusPending))
	require.False(t, CanTransition(StatusProvisioned, StatusFailed))
	require.False(t, CanTransition(StatusFailed, StatusPending))
}
