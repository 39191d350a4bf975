package env

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/lottery-client/pkg/config"
)

func TestConfig_SetAndUnset(t *testing.T) {
	const env = "LOTTERY_ENV_CONFIG_TEST_VAR"

	t.Setenv(env, "value")
	v, err := NewConfig(env).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), v)

	t.Setenv(env, "")
	v, err = NewConfig(env).Get(context.Background())
	assert.Nil(t, v)
	assert.Equal(t, config.ErrNoValue, err)
}

func TestConfig_KeyIsUppercased(t *testing.T) {
	t.Setenv("LOTTERY_ENV_CONFIG_TEST_CASE", "value")

	v, err := NewConfig("lottery_env_config_test_case").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), v)
}

func TestTypedConfigs(t *testing.T) {
	ctx := context.Background()

	t.Setenv("LOTTERY_ENV_CONFIG_TEST_STRING", "finalized")
	t.Setenv("LOTTERY_ENV_CONFIG_TEST_UINT64", "12")
	t.Setenv("LOTTERY_ENV_CONFIG_TEST_DURATION", "750ms")

	assert.Equal(t, "finalized", NewStringConfig("LOTTERY_ENV_CONFIG_TEST_STRING", "confirmed").Get(ctx))
	assert.EqualValues(t, 12, NewUint64Config("LOTTERY_ENV_CONFIG_TEST_UINT64", 30).Get(ctx))
	assert.Equal(t, 750*time.Millisecond, NewDurationConfig("LOTTERY_ENV_CONFIG_TEST_DURATION", time.Second).Get(ctx))

	assert.Equal(t, "confirmed", NewStringConfig("LOTTERY_ENV_CONFIG_TEST_MISSING", "confirmed").Get(ctx))

	t.Setenv("LOTTERY_ENV_CONFIG_TEST_UINT64", "twelve")
	value, err := NewUint64Config("LOTTERY_ENV_CONFIG_TEST_UINT64", 30).GetSafe(ctx)
	assert.Error(t, err)
	assert.EqualValues(t, 30, value)
}
