package solana

import (
	"context"
	"encoding/base64"
	"github.com/ariefcatur/go-esim-orders/internal/settlement"
	sol "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// rpcServer answers JSON-RPC calls from canned results keyed by method.
type rpcServer struct {
	mu      sync.Mutex
	results map[string]string
	calls   []gjson.Result
}

func newRPCServer(t *testing.T, results map[string]string) (*rpcServer, *Ledger) {
	t.Helper()
	s := &rpcServer{results: results}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req := gjson.ParseBytes(body)
		s.mu.Lock()
		s.calls = append(s.calls, req)
		res, ok := s.results[req.Get("method").String()]
		s.mu.Unlock()

		id := req.Get("id").Raw
		if id == "" {
			id = "1"
		}
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":`+id+`,"error":{"code":-32601,"message":"Method not found"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":`+id+`,"result":`+res+`}`)
	}))
	t.Cleanup(srv.Close)
	return s, NewLedger(srv.URL)
}

func (s *rpcServer) last(method string) gjson.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].Get("method").String() == method {
			return s.calls[i]
		}
	}
	return gjson.Result{}
}

func testSignature() sol.Signature {
	var sig sol.Signature
	for i := range sig {
		sig[i] = byte(i + 1)
	}
	return sig
}

func TestLedgerBalance(t *testing.T) {
	srv, l := newRPCServer(t, map[string]string{
		"getBalance": `{"context":{"slot":42},"value":1500000000}`,
	})
	addr := sol.NewWallet().PublicKey().String()

	got, err := l.Balance(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1_500_000_000), got)

	call := srv.last("getBalance")
	require.Equal(t, addr, call.Get("params.0").String())
	require.Equal(t, "finalized", call.Get("params.1.commitment").String())

	_, err = l.Balance(context.Background(), "not-base58-0OIl")
	require.Error(t, err)
}

func TestLedgerLatestAnchor(t *testing.T) {
	hash := sol.Hash(sol.NewWallet().PublicKey())
	_, l := newRPCServer(t, map[string]string{
		"getLatestBlockhash": `{"context":{"slot":42},"value":{"blockhash":"` + hash.String() + `","lastValidBlockHeight":300}}`,
	})

	got, err := l.LatestAnchor(context.Background())
	require.NoError(t, err)
	require.Equal(t, hash.String(), got)
}

func TestLedgerBroadcast(t *testing.T) {
	sig := testSignature()
	srv, l := newRPCServer(t, map[string]string{
		"sendTransaction": `"` + sig.String() + `"`,
	})
	src := sol.NewWallet()
	secret, err := EncodeSecret(src.PrivateKey)
	require.NoError(t, err)

	got, err := l.Broadcast(context.Background(), settlement.Transfer{
		SourceSecret: secret,
		Destination:  sol.NewWallet().PublicKey().String(),
		Amount:       10_200_000,
		Anchor:       sol.Hash(sol.NewWallet().PublicKey()).String(),
	})
	require.NoError(t, err)
	require.Equal(t, sig.String(), got)

	call := srv.last("sendTransaction")
	raw, err := base64.StdEncoding.DecodeString(call.Get("params.0").String())
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.True(t, call.Get("params.1.skipPreflight").Bool())

	_, err = l.Broadcast(context.Background(), settlement.Transfer{SourceSecret: "[1,2]"})
	require.ErrorIs(t, err, ErrInvalidSecret)
}

func TestLedgerFinality(t *testing.T) {
	sig := testSignature()
	cases := []struct {
		name   string
		result string
		want   settlement.Finality
	}{
		{
			name:   "unknown signature",
			result: `{"context":{"slot":42},"value":[null]}`,
			want:   settlement.Finality{Found: false},
		},
		{
			name:   "confirmed only",
			result: `{"context":{"slot":42},"value":[{"slot":40,"confirmations":2,"err":null,"confirmationStatus":"confirmed"}]}`,
			want:   settlement.Finality{Found: true, Finalized: false},
		},
		{
			name:   "finalized",
			result: `{"context":{"slot":42},"value":[{"slot":40,"confirmations":null,"err":null,"confirmationStatus":"finalized"}]}`,
			want:   settlement.Finality{Found: true, Finalized: true},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, l := newRPCServer(t, map[string]string{"getSignatureStatuses": tc.result})
			got, err := l.Finality(context.Background(), sig.String())
			require.NoError(t, err)
			require.Equal(t, tc.want, got)

			call := srv.last("getSignatureStatuses")
			require.Equal(t, sig.String(), call.Get("params.0.0").String())
			require.True(t, call.Get("params.1.searchTransactionHistory").Bool())
		})
	}

	t.Run("finalized with execution error", func(t *testing.T) {
		_, l := newRPCServer(t, map[string]string{
			"getSignatureStatuses": `{"context":{"slot":42},"value":[{"slot":40,"confirmations":null,"err":{"InstructionError":[0,{"Custom":1}]},"confirmationStatus":"finalized"}]}`,
		})
		got, err := l.Finality(context.Background(), sig.String())
		require.NoError(t, err)
		require.True(t, got.Found)
		require.True(t, got.Finalized)
		require.NotEmpty(t, got.ExecErr)
	})

	t.Run("rpc error", func(t *testing.T) {
		_, l := newRPCServer(t, map[string]string{})
		_, err := l.Finality(context.Background(), sig.String())
		require.Error(t, err)
	})

	t.Run("malformed signature", func(t *testing.T) {
		_, l := newRPCServer(t, map[string]string{})
		_, err := l.Finality(context.Background(), "0OIl")
		require.Error(t, err)
	})
}
