package orders

import (
	"context"
	"github.com/ariefcatur/go-esim-orders/internal/kafka"
	"github.com/ariefcatur/go-esim-orders/internal/kv"
	"github.com/ariefcatur/go-esim-orders/internal/settlement"
	"github.com/raulk/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"net"
	"testing"
	"time"
)

func TestCreateDoesNotWaitOnStalledBroker(t *testing.T) {
	// broker yang terima koneksi tapi tidak pernah jawab
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	conns := make(chan net.Conn, 64)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			select {
			case conns <- c:
			default:
				_ = c.Close()
			}
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		for {
			select {
			case c := <-conns:
				_ = c.Close()
			default:
				return
			}
		}
	})

	prod := kafka.NewProducer([]string{ln.Addr().String()}, TopicOrderStatus, 1)
	prod.Start()
	t.Cleanup(prod.Close)

	repo := NewRepo(kv.NewMemory())
	eng := settlement.NewEngine(fixedOracle{rate: decimal.NewFromInt(150)}, newChainLedger(),
		settlement.DefaultConfig(settlementAddr), nil)
	m := NewMachine(repo, eng, &stubProvider{}, prod, clock.NewMock(), Config{}, nil)

	gen := func() (string, string, error) { return fundingAddr, fundingSecret, nil }
	_, err = NewProfiles(repo, gen).Create(context.Background())
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		o, err := m.Create(ctx, purchase("1.53"))
		cancel()
		require.NoError(t, err)
		_, ok, err := repo.GetOrder(context.Background(), KindPurchase, o.OrderID)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Less(t, time.Since(start), 2*time.Second)
	require.Greater(t, prod.Dropped(), uint64(0))

	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close waited on event publishing")
	}
}
