package orders

type Status string

const (
	StatusPending      Status = "pending"
	StatusPaid         Status = "paid"
	StatusPaidToMaster Status = "paid_to_master"
	StatusProvisioned  Status = "esim_provisioned"
	StatusFailed       Status = "failed"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:      {StatusPaid: true, StatusFailed: true},
	StatusPaid:         {StatusPaidToMaster: true, StatusFailed: true},
	StatusPaidToMaster: {StatusProvisioned: true, StatusFailed: true},
	StatusProvisioned:  {},
	StatusFailed:       {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal status tidak pernah berubah lagi.
func (s Status) Terminal() bool {
	return s == StatusProvisioned || s == StatusFailed
}
