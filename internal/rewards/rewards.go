package rewards

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Amounts maps event types to the number of pineapples they award.
var Amounts = map[string]int{
	"chat_prompt":       1,
	"chat_feature":      1,
	"chat_customer":     1,
	"chat_revenue":      1,
	"link_linkedin":     5,
	"link_github":       5,
	"link_website":      3,
	"url_added":         3,
	"description_added": 3,
	"feature_shipped":   3,
	"customer_added":    5,
	"revenue_logged":    10,
}

// DefaultAmount applies to event types missing from the table.
const DefaultAmount = 5

const (
	defaultMaxRewardsPerHour = 60
	defaultMinimumRedemption = 50
)

// Amount returns the pineapple award for an event type.
func Amount(eventType string) int {
	if amount, ok := Amounts[eventType]; ok {
		return amount
	}
	return DefaultAmount
}

// MaxRewardsPerHour is the per-user ceiling on ledger inserts inside the
// trailing one-hour window.
func MaxRewardsPerHour() int {
	if v := viper.GetInt("rewards.max_per_hour"); v > 0 {
		return v
	}
	return defaultMaxRewardsPerHour
}

// MinimumRedemption is the smallest pineapple amount a redemption may request.
func MinimumRedemption() int {
	if v := viper.GetInt("rewards.minimum_redemption"); v > 0 {
		return v
	}
	return defaultMinimumRedemption
}

var ErrEmptyDiscriminator = errors.New("idempotency key discriminator must not be empty")

// IdempotencyKey builds the canonical ledger key for one logical action.
// The discriminator distinguishes repeatable actions (a message id) from
// one-shot actions (a field name). Time-based discriminators are refused by
// omission: callers with nothing stable to pass get an error, not a
// fresh-every-call key.
func IdempotencyKey(userID, projectID, eventType, discriminator string) (string, error) {
	if discriminator == "" {
		return "", ErrEmptyDiscriminator
	}
	return fmt.Sprintf("%s:%s:%s:%s", userID, projectID, eventType, discriminator), nil
}

// RedemptionKey keys the negative ledger entry written when a redemption is
// created. The redemption row id must already exist.
func RedemptionKey(redemptionID string) string {
	return fmt.Sprintf("redeem-%s", redemptionID)
}
