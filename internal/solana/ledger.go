package solana

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-esim-orders/internal/settlement"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
)

// Ledger implements settlement.Ledger over a Solana JSON-RPC endpoint.
type Ledger struct {
	client *rpc.Client
}

var _ settlement.Ledger = (*Ledger)(nil)

func NewLedger(rpcURL string) *Ledger {
	return &Ledger{client: rpc.New(rpcURL)}
}

func (l *Ledger) Balance(ctx context.Context, address string) (uint64, error) {
	pk, err := sol.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("address %q: %w", address, err)
	}
	out, err := l.client.GetBalance(ctx, pk, rpc.CommitmentFinalized)
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

func (l *Ledger) LatestAnchor(ctx context.Context) (string, error) {
	out, err := l.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", err
	}
	return out.Value.Blockhash.String(), nil
}

func (l *Ledger) Broadcast(ctx context.Context, t settlement.Transfer) (string, error) {
	key, err := DecodeSecret(t.SourceSecret)
	if err != nil {
		return "", err
	}
	from := key.PublicKey()
	to, err := sol.PublicKeyFromBase58(t.Destination)
	if err != nil {
		return "", fmt.Errorf("destination %q: %w", t.Destination, err)
	}
	anchor, err := sol.HashFromBase58(t.Anchor)
	if err != nil {
		return "", fmt.Errorf("anchor %q: %w", t.Anchor, err)
	}

	tx, err := sol.NewTransaction(
		[]sol.Instruction{system.NewTransferInstruction(t.Amount, from, to).Build()},
		anchor,
		sol.TransactionPayer(from),
	)
	if err != nil {
		return "", fmt.Errorf("build transfer: %w", err)
	}
	if _, err := tx.Sign(func(pk sol.PublicKey) *sol.PrivateKey {
		if pk.Equals(from) {
			return &key
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transfer: %w", err)
	}

	sig, err := l.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{SkipPreflight: true})
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

func (l *Ledger) Finality(ctx context.Context, txID string) (settlement.Finality, error) {
	sig, err := sol.SignatureFromBase58(txID)
	if err != nil {
		return settlement.Finality{}, fmt.Errorf("signature %q: %w", txID, err)
	}
	out, err := l.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return settlement.Finality{}, err
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return settlement.Finality{Found: false}, nil
	}
	st := out.Value[0]
	f := settlement.Finality{
		Found:     true,
		Finalized: st.ConfirmationStatus == rpc.ConfirmationStatusFinalized,
	}
	if st.Err != nil {
		f.ExecErr = fmt.Sprint(st.Err)
	}
	return f, nil
}
