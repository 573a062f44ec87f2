package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type VaultMetrics struct {
	stakes          prometheus.Counter
	unstakes        prometheus.Counter
	harvests        prometheus.Counter
	flashLoans      *prometheus.CounterVec
	flashLoanVolume prometheus.Counter
	totalBase       prometheus.Gauge
	syntheticSupply prometheus.Gauge
	accruedYield    prometheus.Gauge
	treasuryOwed    prometheus.Gauge
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			stakes: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_stakes_total",
				Help: "Count of successful stake operations.",
			}),
			unstakes: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_unstakes_total",
				Help: "Count of successful unstake operations.",
			}),
			harvests: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_harvests_total",
				Help: "Count of harvest operations, no-ops included.",
			}),
			flashLoans: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_flash_loans_total",
				Help: "Count of flash loan attempts by result.",
			}, []string{"result"}),
			flashLoanVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_flash_loan_volume",
				Help: "Cumulative principal disbursed by settled flash loans.",
			}),
			totalBase: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_total_base_deposited",
				Help: "Base asset currently held by the pool.",
			}),
			syntheticSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_synthetic_supply",
				Help: "Synthetic claim tokens currently outstanding.",
			}),
			accruedYield: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_accrued_yield",
				Help: "Yield pool available for harvest payouts.",
			}),
			treasuryOwed: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_treasury_owed",
				Help: "Fees accrued but not yet withdrawn by the treasury.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.stakes,
			vaultRegistry.unstakes,
			vaultRegistry.harvests,
			vaultRegistry.flashLoans,
			vaultRegistry.flashLoanVolume,
			vaultRegistry.totalBase,
			vaultRegistry.syntheticSupply,
			vaultRegistry.accruedYield,
			vaultRegistry.treasuryOwed,
		)
	})
	return vaultRegistry
}

func (m *VaultMetrics) ObserveStake() {
	if m == nil {
		return
	}
	m.stakes.Inc()
}

func (m *VaultMetrics) ObserveUnstake() {
	if m == nil {
		return
	}
	m.unstakes.Inc()
}

func (m *VaultMetrics) ObserveHarvest() {
	if m == nil {
		return
	}
	m.harvests.Inc()
}

// ObserveFlashLoan records a loan attempt. Volume counts settled principal
// only.
func (m *VaultMetrics) ObserveFlashLoan(result string, amount *big.Int) {
	if m == nil {
		return
	}
	m.flashLoans.WithLabelValues(result).Inc()
	if result == "settled" && amount != nil {
		volume, _ := new(big.Float).SetInt(amount).Float64()
		m.flashLoanVolume.Add(volume)
	}
}

// SetLedgerGauges refreshes the pool gauges from the current vault totals.
func (m *VaultMetrics) SetLedgerGauges(totalBase, supply, yield, treasury *big.Int) {
	if m == nil {
		return
	}
	setGauge := func(g prometheus.Gauge, v *big.Int) {
		if v == nil {
			g.Set(0)
			return
		}
		f, _ := new(big.Float).SetInt(v).Float64()
		g.Set(f)
	}
	setGauge(m.totalBase, totalBase)
	setGauge(m.syntheticSupply, supply)
	setGauge(m.accruedYield, yield)
	setGauge(m.treasuryOwed, treasury)
}
