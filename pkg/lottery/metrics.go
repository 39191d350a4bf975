package lottery

import (
	"context"
	"time"

	"github.com/code-payments/lottery-client/pkg/metrics"
)

const (
	metricsStructName            = "lottery.client"
	provisionerMetricsStructName = "lottery.provisioner"

	submissionEventName           = "LotteryInstructionSubmitted"
	confirmationLatencyMetricName = "Lottery/confirmation_latency"
)

func recordSubmissionEvent(ctx context.Context, op, outcome string) {
	metrics.RecordEvent(ctx, submissionEventName, map[string]interface{}{
		"op":      op,
		"outcome": outcome,
		"count":   1,
	})
}

func recordConfirmationLatency(ctx context.Context, latency time.Duration) {
	metrics.RecordDuration(ctx, confirmationLatencyMetricName, latency)
}
