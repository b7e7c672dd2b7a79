package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine-level Prometheus metrics. Registered on the default registry and
// exposed by the server's /metrics endpoint.
var (
	AppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgsync_appends_total",
		Help: "Messages appended across all threads.",
	})
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgsync_events_total",
		Help: "Fanout events committed, by kind.",
	}, []string{"kind"})
	DeliveryMarksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgsync_delivery_marks_total",
		Help: "Delivery/read transitions applied, by state.",
	}, []string{"state"})
	ReactionTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgsync_reaction_toggles_total",
		Help: "Reaction toggles, by outcome.",
	}, []string{"outcome"})
	FanoutDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgsync_fanout_queue_drops_total",
		Help: "Notify-queue enqueues dropped because the queue was full.",
	})
	SubscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "msgsync_fanout_subscribers",
		Help: "Live fanout subscriptions.",
	})
	TypingActiveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "msgsync_typing_active",
		Help: "Unexpired typing signals.",
	})
)
