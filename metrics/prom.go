package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PasteCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastrio_paste_created_total",
		Help: "no. of pastes created",
	})
	PasteViewed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastrio_paste_viewed_total",
		Help: "no. of paste reads served",
	})
	PasteViewCapped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastrio_paste_view_capped_total",
		Help: "no. of pastes deleted after hitting their view cap",
	})
	PruneCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastrio_prune_cycles_total",
		Help: "no. of expiry sweep cycles",
	})
	PastesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastrio_pastes_purged_total",
		Help: "no. of pastes removed by the expiry sweep",
	})
	SessionCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastrio_session_created_total",
		Help: "no. of sessions established",
	})
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pastrio_auth_failures_total",
			Help: "no. of failed auth attempts",
		},
		[]string{"reason"},
	)
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pastrio_rate_limit_hits_total",
			Help: "no. of rate limit violations",
		},
		[]string{"endpoint"},
	)
)
