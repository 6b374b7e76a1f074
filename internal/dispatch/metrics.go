// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes used as the "result" label.
const (
	ResultSuccess    = "success"
	ResultUnknown    = "unknown"
	ResultIncomplete = "incomplete"
	ResultDenied     = "denied"
	ResultInvalid    = "invalid"
	ResultUnbound    = "unbound"
	ResultRedirect   = "redirect"
	ResultCanceled   = "canceled"
	ResultError      = "error"
)

// Metrics records dispatch outcomes. A nil *Metrics records nothing.
type Metrics struct {
	dispatches *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics creates the dispatch metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Name:      "dispatches_total",
			Help:      "Executed command inputs by result.",
		}, []string{"result"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cmdtree",
			Name:      "dispatch_duration_seconds",
			Help:      "Time to parse and run one command input.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, r := range []string{
		ResultSuccess, ResultUnknown, ResultIncomplete, ResultDenied, ResultInvalid,
		ResultUnbound, ResultRedirect, ResultCanceled, ResultError,
	} {
		m.dispatches.WithLabelValues(r)
	}
	return m
}

func (m *Metrics) observe(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(Classify(err)).Inc()
	m.duration.Observe(d.Seconds())
}

// Classify maps a dispatch error to its result label.
func Classify(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrPermissionDenied):
		return ResultDenied
	case errors.Is(err, ErrIncompleteCommand):
		return ResultIncomplete
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrUnknownArgumentType):
		return ResultInvalid
	case errors.Is(err, ErrUnknownCommand):
		return ResultUnknown
	case errors.Is(err, cmdtree.ErrUnboundExecutable):
		return ResultUnbound
	case errors.Is(err, ErrRedirectCardinality), errors.Is(err, ErrUnknownModifier), errors.Is(err, ErrRedirectLoop):
		return ResultRedirect
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	default:
		return ResultError
	}
}
