package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InstructionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fomo_ledger_instructions_total",
			Help: "Total number of processed instructions",
		},
		[]string{"instruction", "status"},
	)

	InstructionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fomo_ledger_instruction_duration_seconds",
			Help:    "Duration of instruction processing",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~0.8s
		},
		[]string{"instruction"},
	)

	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fomo_ledger_transactions_total",
			Help: "Total number of executed transactions",
		},
		[]string{"status"},
	)

	RoundMintCounter = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fomo_ledger_round_mint_counter",
			Help: "Mint counter of a round after the last committed transaction",
		},
		[]string{"round"},
	)
)
