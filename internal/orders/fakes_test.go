package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-esim-orders/internal/airalo"
	"github.com/ariefcatur/go-esim-orders/internal/settlement"
	"github.com/shopspring/decimal"
	"sync"
)

var errUpstream = errors.New("upstream unavailable")

type fixedOracle struct{ rate decimal.Decimal }

func (o fixedOracle) Rate(context.Context) (decimal.Decimal, error) { return o.rate, nil }

// chainLedger is an in-memory ledger: balances by address, broadcasts
// that fail while failBroadcast is set, and instant finality.
type chainLedger struct {
	mu            sync.Mutex
	balances      map[string]uint64
	failBroadcast bool
	anchors       []string
	transfers     []settlement.Transfer
}

func newChainLedger() *chainLedger { return &chainLedger{balances: map[string]uint64{}} }

func (l *chainLedger) fund(addr string, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] += lamports
}

func (l *chainLedger) setFailBroadcast(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failBroadcast = v
}

func (l *chainLedger) anchorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.anchors)
}

func (l *chainLedger) Balance(_ context.Context, addr string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr], nil
}

func (l *chainLedger) LatestAnchor(context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := fmt.Sprintf("anchor-%d", len(l.anchors)+1)
	l.anchors = append(l.anchors, a)
	return a, nil
}

func (l *chainLedger) Broadcast(_ context.Context, t settlement.Transfer) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failBroadcast {
		return "", errUpstream
	}
	l.transfers = append(l.transfers, t)
	return fmt.Sprintf("sig-%d", len(l.transfers)), nil
}

func (l *chainLedger) Finality(context.Context, string) (settlement.Finality, error) {
	return settlement.Finality{Found: true, Finalized: true}, nil
}

// stubProvider hands out sequential ICCIDs; failures counts down calls
// that return errUpstream first.
type stubProvider struct {
	mu        sync.Mutex
	failures  int
	issued    int
	usage     map[string]json.RawMessage
	topUpArgs []string
}

func (p *stubProvider) fail() bool {
	if p.failures > 0 {
		p.failures--
		return true
	}
	return false
}

func (p *stubProvider) Provision(_ context.Context, packageID string, _ int) (airalo.SIM, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail() {
		return airalo.SIM{}, errUpstream
	}
	p.issued++
	return airalo.SIM{ICCID: fmt.Sprintf("8944000000000000%03d", p.issued), QRCode: "LPA:1$rsp.example$" + packageID}, nil
}

func (p *stubProvider) TopUp(_ context.Context, packageID, iccid string) (airalo.TopUp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail() {
		return airalo.TopUp{}, errUpstream
	}
	p.topUpArgs = append(p.topUpArgs, iccid)
	return airalo.TopUp{ID: "topup-1", PackageID: packageID, Currency: "USD", Quantity: 1, Data: "1GB", Price: "9.99"}, nil
}

func (p *stubProvider) Usage(_ context.Context, iccid string) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.usage[iccid]
	if !ok {
		return nil, errUpstream
	}
	return u, nil
}

// recordingPublisher keeps every status change published.
type recordingPublisher struct {
	mu      sync.Mutex
	types   []string
	changes []OrderStatusChangedPayload
}

func (r *recordingPublisher) PublishEvent(_, eventType string, body []byte) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		panic(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	if eventType == EventOrderStatusChanged {
		var p OrderStatusChangedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			panic(err)
		}
		r.changes = append(r.changes, p)
	}
}

func (r *recordingPublisher) statusChanges() []OrderStatusChangedPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderStatusChangedPayload(nil), r.changes...)
}
