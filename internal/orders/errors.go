package orders

import "errors"

var (
	ErrProfileNotFound    = errors.New("ProfileNotFound")
	ErrNotFound           = errors.New("NotFound")
	ErrInvalidRequest     = errors.New("InvalidRequest")
	ErrProvisioningFailed = errors.New("ProvisioningFailed")
)
