package settlement

import (
	"context"
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
	"sync"
)

type fixedOracle struct {
	rate decimal.Decimal
	err  error
}

func (o fixedOracle) Rate(context.Context) (decimal.Decimal, error) { return o.rate, o.err }

type fakeLedger struct {
	mu sync.Mutex

	balance      uint64
	balanceErr   error
	broadcastErr error
	finality     []Finality // consumed in order, last one repeats
	finalityErr  error

	anchors    int
	broadcasts []Transfer
	finalities int
}

func (l *fakeLedger) Balance(context.Context, string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance, l.balanceErr
}

func (l *fakeLedger) LatestAnchor(context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.anchors++
	return fmt.Sprintf("anchor-%d", l.anchors), nil
}

func (l *fakeLedger) Broadcast(_ context.Context, t Transfer) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.broadcasts = append(l.broadcasts, t)
	if l.broadcastErr != nil {
		return "", l.broadcastErr
	}
	return fmt.Sprintf("tx-%d", len(l.broadcasts)), nil
}

func (l *fakeLedger) Finality(context.Context, string) (Finality, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finalities++
	if l.finalityErr != nil {
		return Finality{}, l.finalityErr
	}
	if len(l.finality) == 0 {
		return Finality{Found: true, Finalized: true}, nil
	}
	f := l.finality[0]
	if len(l.finality) > 1 {
		l.finality = l.finality[1:]
	}
	return f, nil
}

var errRPC = errors.New("rpc unavailable")
