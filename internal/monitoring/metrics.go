package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CommissionPayoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaignwala_commission_payouts_total",
			Help: "Commission tranches credited to HR wallets",
		},
		[]string{"tranche"},
	)

	CommissionAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaignwala_commission_amount_total",
			Help: "Sum of commission amounts credited, by tranche",
		},
		[]string{"tranche"},
	)

	OTPIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaignwala_otp_issued_total",
			Help: "OTP issuance attempts by delivery channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	WithdrawalsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaignwala_withdrawals_processed_total",
			Help: "Withdrawals approved or rejected by an admin",
		},
		[]string{"outcome"},
	)
)
