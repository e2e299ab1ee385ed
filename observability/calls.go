package observability

import (
	"github.com/unruly-software/api"
	"github.com/unruly-software/api/topic"
)

// Observe records every notification published on succeeded and failed
// under side. Either topic may be nil. The returned func stops recording.
func Observe(side string, succeeded *topic.Topic[api.Success], failed *topic.Topic[api.Failure]) (stop func()) {
	var stops []func()
	if succeeded != nil {
		stops = append(stops, succeeded.Subscribe(func(s api.Success) {
			CallsTotal.WithLabelValues(side, s.Operation, OutcomeSuccess).Inc()
			CallDuration.WithLabelValues(side, s.Operation).Observe(s.Duration.Seconds())
		}))
	}
	if failed != nil {
		stops = append(stops, failed.Subscribe(func(f api.Failure) {
			CallsTotal.WithLabelValues(side, f.Operation, OutcomeFailure).Inc()
			CallDuration.WithLabelValues(side, f.Operation).Observe(f.Duration.Seconds())
		}))
	}
	return func() {
		for _, s := range stops {
			s()
		}
	}
}
