package solana

import (
	"encoding/json"
	"errors"
	"fmt"
	sol "github.com/gagliardetto/solana-go"
	"strings"
)

var ErrInvalidSecret = errors.New("invalid wallet secret")

// NewWallet generates a collection wallet. The secret is the 64-byte private
// key encoded as a JSON array of numbers.
func NewWallet() (address, secret string, err error) {
	w := sol.NewWallet()
	b, err := EncodeSecret(w.PrivateKey)
	if err != nil {
		return "", "", err
	}
	return w.PublicKey().String(), b, nil
}

func EncodeSecret(key sol.PrivateKey) (string, error) {
	nums := make([]int, len(key))
	for i, b := range key {
		nums[i] = int(b)
	}
	out, err := json.Marshal(nums)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecodeSecret accepts the JSON byte-array form or a base58 string.
func DecodeSecret(secret string) (sol.PrivateKey, error) {
	s := strings.TrimSpace(secret)
	if strings.HasPrefix(s, "[") {
		var nums []int
		if err := json.Unmarshal([]byte(s), &nums); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
		}
		if len(nums) != 64 {
			return nil, fmt.Errorf("%w: want 64 bytes, got %d", ErrInvalidSecret, len(nums))
		}
		key := make(sol.PrivateKey, len(nums))
		for i, n := range nums {
			if n < 0 || n > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidSecret, i)
			}
			key[i] = byte(n)
		}
		return key, nil
	}
	key, err := sol.PrivateKeyFromBase58(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return key, nil
}
