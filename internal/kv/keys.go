package kv

import (
	"fmt"
	"strings"
	"time"
)

const (
	// payment profile: /payment_profiles/{address}
	KeyProfile = "/payment_profiles/%s"

	// purchase order: /orders/{order_id}
	KeyOrder = "/orders/%s"

	// top-up order: /topup_orders/{order_id}
	KeyTopUpOrder = "/topup_orders/%s"

	// catalog cache entry: /package-plans/{type}/{region}
	KeyPackagePlans = "/package-plans/%s/%s"

	// cached provider access token
	KeyProviderToken = "/airalo/access_token"

	// client error reports: /error_logs/{timestamp_key}
	KeyErrorLog = "/error_logs/%s"
)

func ProfileKey(address string) string { return fmt.Sprintf(KeyProfile, address) }

func PackagePlansKey(kind, region string) string {
	if region == "" {
		region = "global"
	}
	return fmt.Sprintf(KeyPackagePlans, kind, region)
}

// ErrorLogKey turns a timestamp into a key segment with every
// non-alphanumeric rune replaced by '_'.
func ErrorLogKey(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	seg := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, ts)
	return fmt.Sprintf(KeyErrorLog, seg)
}
