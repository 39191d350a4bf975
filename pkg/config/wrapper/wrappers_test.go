package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/lottery-client/pkg/config"
	"github.com/code-payments/lottery-client/pkg/config/memory"
)

func TestStringConfig(t *testing.T) {
	testFallbacks(t, NewStringConfig, "confirmed", "finalized")
}

func TestUint64Config(t *testing.T) {
	testFallbacks(t, NewUint64Config, 30, 5)
}

func TestDurationConfig(t *testing.T) {
	testFallbacks(t, NewDurationConfig, time.Second, 250*time.Millisecond)
}

func testFallbacks[T any](t *testing.T, newConfig func(config.Config, T) config.Value[T], defaultValue, overridenValue T) {
	ctx := context.Background()
	mock := memory.NewConfig(nil)
	wrapper := newConfig(mock, defaultValue)

	// Return the default value when no override is set
	val, err := wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(ctx))

	// The overriden value is returned when set
	mock.SetValue(overridenValue)
	val, err = wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, overridenValue, val)
	assert.Equal(t, overridenValue, wrapper.Get(ctx))

	// The last observed config value is returned on error
	mock.InduceErrors()
	val, err = wrapper.GetSafe(ctx)
	require.Error(t, err)
	assert.Equal(t, overridenValue, val)
	assert.Equal(t, overridenValue, wrapper.Get(ctx))

	// The last observed config value is returned on unsupported types
	mock.StopInducingErrors()
	mock.SetValue(struct{}{})
	val, err = wrapper.GetSafe(ctx)
	assert.Equal(t, ErrUnsupportedConversion, err)
	assert.Equal(t, overridenValue, val)

	// The default value is returned when the override no longer has a value
	mock.ClearValue()
	val, err = wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(ctx))

	wrapper.Shutdown()
	_, err = wrapper.GetSafe(ctx)
	assert.Equal(t, config.ErrShutdown, err)
}

func TestConversions_FromBytes(t *testing.T) {
	s, err := ToString([]byte("processed"))
	require.NoError(t, err)
	assert.Equal(t, "processed", s)

	u, err := ToUint64([]byte("42"))
	require.NoError(t, err)
	assert.EqualValues(t, 42, u)

	d, err := ToDuration([]byte("1m30s"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	for _, raw := range []string{"-1", "1.5", "abc", ""} {
		_, err = ToUint64([]byte(raw))
		assert.Error(t, err, raw)
	}

	_, err = ToDuration([]byte("5"))
	assert.Error(t, err)
}

func TestConversions_Uint64Integers(t *testing.T) {
	for _, raw := range []interface{}{uint64(7), uint(7), 7} {
		u, err := ToUint64(raw)
		require.NoError(t, err)
		assert.EqualValues(t, 7, u)
	}

	_, err := ToUint64(-7)
	assert.Error(t, err)

	_, err = ToUint64(int64(7))
	assert.Equal(t, ErrUnsupportedConversion, err)
}
