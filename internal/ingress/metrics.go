package ingress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var inboundWebhooks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "flashfusion",
		Subsystem: "ingress",
		Name:      "webhooks_total",
		Help:      "Inbound webhooks by platform and outcome",
	},
	[]string{"platform", "outcome"},
)

func recordIngress(platform, outcome string) {
	if platform == "" {
		platform = PlatformUnknown
	}
	inboundWebhooks.WithLabelValues(platform, outcome).Inc()
}
