package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"quickpoll/internal/events"
)

const namespace = "quickpoll"

/*
Room counters are fed from the event bus (the Handle method makes Metrics a
broadcast sink). Rejections and handling time never reach the bus, so the
router records them directly.
*/
type Metrics struct {
	RoomsCreated  prometheus.Counter
	RoomsEvicted  prometheus.Counter
	UsersJoined   prometheus.Counter
	VotesAccepted prometheus.Counter
	VotesRejected *prometheus.CounterVec
	PollsClosed   prometheus.Counter
	Connections   prometheus.Gauge
	HandleTime    *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RoomsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Total number of poll rooms created",
		}),
		RoomsEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_evicted_total",
			Help:      "Total number of closed rooms removed from memory",
		}),
		UsersJoined: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_joined_total",
			Help:      "Total number of users that joined an existing room",
		}),
		VotesAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_accepted_total",
			Help:      "Total number of votes counted",
		}),
		VotesRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "votes_rejected_total",
				Help:      "Total number of votes rejected, by reason",
			},
			[]string{"reason"},
		),
		PollsClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_closed_total",
			Help:      "Total number of polls closed by their deadline",
		}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Currently open websocket connections",
		}),
		HandleTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_handle_seconds",
				Help:      "Time spent handling one inbound client event",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100us to ~1.6s
			},
			[]string{"event"},
		),
	}
}

func (m *Metrics) Handle(ev events.RoomEvent) {
	switch ev.Name {
	case events.RoomCreated:
		m.RoomsCreated.Inc()
	case events.UserJoined:
		m.UsersJoined.Inc()
	case events.StateUpdated:
		m.VotesAccepted.Inc()
	case events.PollClosed:
		m.PollsClosed.Inc()
	case events.RoomEvicted:
		m.RoomsEvicted.Inc()
	}
}
