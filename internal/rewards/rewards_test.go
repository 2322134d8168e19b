package rewards

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestAmount(t *testing.T) {
	assert.Equal(t, 1, Amount("chat_prompt"))
	assert.Equal(t, 10, Amount("revenue_logged"))
	assert.Equal(t, 5, Amount("link_github"))

	// Unknown event types fall back to the default
	assert.Equal(t, DefaultAmount, Amount("something_new"))
	assert.Equal(t, DefaultAmount, Amount(""))
}

func TestIdempotencyKey(t *testing.T) {
	key, err := IdempotencyKey("user-1", "proj-1", "chat_prompt", "msg-42")
	assert.NoError(t, err)
	assert.Equal(t, "user-1:proj-1:chat_prompt:msg-42", key)

	key2, err := IdempotencyKey("user-1", "proj-1", "chat_prompt", "msg-42")
	assert.NoError(t, err)
	assert.Equal(t, key, key2, "same inputs must produce the same key")

	_, err = IdempotencyKey("user-1", "proj-1", "chat_prompt", "")
	assert.ErrorIs(t, err, ErrEmptyDiscriminator)
}

func TestRedemptionKey(t *testing.T) {
	assert.Equal(t, "redeem-abc123", RedemptionKey("abc123"))
}

func TestConfigOverrides(t *testing.T) {
	viper.Set("rewards.max_per_hour", 0)
	viper.Set("rewards.minimum_redemption", 0)
	assert.Equal(t, 60, MaxRewardsPerHour())
	assert.Equal(t, 50, MinimumRedemption())

	viper.Set("rewards.max_per_hour", 10)
	viper.Set("rewards.minimum_redemption", 25)
	defer viper.Set("rewards.max_per_hour", 0)
	defer viper.Set("rewards.minimum_redemption", 0)

	assert.Equal(t, 10, MaxRewardsPerHour())
	assert.Equal(t, 25, MinimumRedemption())
}
