package orders

import (
	"context"
	"fmt"
)

// WalletGenerator returns a new keypair: the public address and the
// serialized secret.
type WalletGenerator func() (address, secret string, err error)

type Profiles struct {
	repo   *Repo
	newKey WalletGenerator
}

func NewProfiles(repo *Repo, gen WalletGenerator) *Profiles {
	return &Profiles{repo: repo, newKey: gen}
}

// Create persists a fresh funding profile and returns it.
func (p *Profiles) Create(ctx context.Context) (FundingProfile, error) {
	addr, secret, err := p.newKey()
	if err != nil {
		return FundingProfile{}, fmt.Errorf("generate wallet: %w", err)
	}
	fp := FundingProfile{PublicKey: addr, PrivateKey: secret}
	if err := p.repo.SaveProfile(ctx, fp); err != nil {
		return FundingProfile{}, err
	}
	log.Infow("payment profile created", "address", addr)
	return fp, nil
}
