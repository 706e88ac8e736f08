package navigation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.viam.com/voxelnav/motionplan"
	"go.viam.com/voxelnav/spatialmath"
)

const metricsNamespace = "voxelnav"

type metrics struct {
	observations  prometheus.Counter
	droppedFrames *prometheus.CounterVec
	plans         *prometheus.CounterVec
	planDuration  prometheus.Histogram
	backups       prometheus.Counter
	instances     prometheus.Gauge
	explored      prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		observations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "observations_total",
			Help:      "Observations added to the map",
		}),
		droppedFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_frames_total",
			Help:      "Frames dropped before reaching the map, by reason",
		}, []string{"reason"}),
		plans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "plans_total",
			Help:      "Planner calls by outcome",
		}, []string{"outcome"}),
		planDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "plan_duration_seconds",
			Help:      "Wall time of planner calls",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		backups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "start_backups_total",
			Help:      "Corrective backups from an invalid start pose",
		}),
		instances: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "instances",
			Help:      "Instances in the map",
		}),
		explored: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "explored_cells",
			Help:      "Explored 2D map cells",
		}),
	}
}

func planOutcome(err error) string {
	if err == nil {
		return "success"
	}
	var pf *motionplan.PlanFailure
	if errors.As(err, &pf) {
		return string(pf.Reason)
	}
	return "error"
}

// meteredPlanner records every planning call and bounds it with a timeout.
type meteredPlanner struct {
	planner motionplan.MotionPlanner
	metrics *metrics
	timeout time.Duration
}

func (mp *meteredPlanner) Plan(ctx context.Context, start, goal spatialmath.Pose2D) (*motionplan.Plan, error) {
	if mp.timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, mp.timeout)
		defer cancel()
	}
	timer := prometheus.NewTimer(mp.metrics.planDuration)
	plan, err := mp.planner.Plan(ctx, start, goal)
	timer.ObserveDuration()
	mp.metrics.plans.WithLabelValues(planOutcome(err)).Inc()
	return plan, err
}
