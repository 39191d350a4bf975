package lottery

import (
	"time"

	"github.com/code-payments/lottery-client/pkg/config"
	"github.com/code-payments/lottery-client/pkg/config/env"
	"github.com/code-payments/lottery-client/pkg/config/memory"
	"github.com/code-payments/lottery-client/pkg/config/wrapper"
	"github.com/code-payments/lottery-client/pkg/solana"
)

const (
	envConfigPrefix = "LOTTERY_"

	CommitmentConfigEnvName = envConfigPrefix + "COMMITMENT"
	defaultCommitment       = "confirmed"

	ConfirmationPollLimitConfigEnvName = envConfigPrefix + "CONFIRMATION_POLL_LIMIT"
	defaultConfirmationPollLimit       = solana.SigStatusPollLimit

	ConfirmationPollRateConfigEnvName = envConfigPrefix + "CONFIRMATION_POLL_RATE"
	defaultConfirmationPollRate       = solana.PollRate

	RentCacheBudgetConfigEnvName = envConfigPrefix + "RENT_CACHE_BUDGET"
	defaultRentCacheBudget       = 64

	// Micro-lamports per compute unit. Zero disables the priority fee.
	ComputeUnitPriceConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_PRICE"
	defaultComputeUnitPrice       = 0

	// Zero leaves the cluster default limit in place.
	ComputeUnitLimitConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_LIMIT"
	defaultComputeUnitLimit       = 0
)

type conf struct {
	commitment            config.String
	confirmationPollLimit config.Uint64
	confirmationPollRate  config.Duration
	rentCacheBudget       config.Uint64
	computeUnitPrice      config.Uint64
	computeUnitLimit      config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			commitment:            env.NewStringConfig(CommitmentConfigEnvName, defaultCommitment),
			confirmationPollLimit: env.NewUint64Config(ConfirmationPollLimitConfigEnvName, defaultConfirmationPollLimit),
			confirmationPollRate:  env.NewDurationConfig(ConfirmationPollRateConfigEnvName, defaultConfirmationPollRate),
			rentCacheBudget:       env.NewUint64Config(RentCacheBudgetConfigEnvName, defaultRentCacheBudget),
			computeUnitPrice:      env.NewUint64Config(ComputeUnitPriceConfigEnvName, defaultComputeUnitPrice),
			computeUnitLimit:      env.NewUint64Config(ComputeUnitLimitConfigEnvName, defaultComputeUnitLimit),
		}
	}
}

// WithCommitment returns configuration pulled from environment variables,
// except for the commitment level, which is fixed to the provided value.
func WithCommitment(commitment string) ConfigProvider {
	return func() *conf {
		c := WithEnvConfigs()()
		c.commitment = wrapper.NewStringConfig(memory.NewConfig(commitment), defaultCommitment)
		return c
	}
}

type testOverrides struct {
	commitment            string
	confirmationPollLimit uint64
	confirmationPollRate  time.Duration
	computeUnitPrice      uint64
	computeUnitLimit      uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			commitment:            wrapper.NewStringConfig(memory.NewConfig(overrides.commitment), defaultCommitment),
			confirmationPollLimit: wrapper.NewUint64Config(memory.NewConfig(overrides.confirmationPollLimit), defaultConfirmationPollLimit),
			confirmationPollRate:  wrapper.NewDurationConfig(memory.NewConfig(overrides.confirmationPollRate), defaultConfirmationPollRate),
			rentCacheBudget:       wrapper.NewUint64Config(memory.NewConfig(uint64(defaultRentCacheBudget)), defaultRentCacheBudget),
			computeUnitPrice:      wrapper.NewUint64Config(memory.NewConfig(overrides.computeUnitPrice), defaultComputeUnitPrice),
			computeUnitLimit:      wrapper.NewUint64Config(memory.NewConfig(overrides.computeUnitLimit), defaultComputeUnitLimit),
		}
	}
}
