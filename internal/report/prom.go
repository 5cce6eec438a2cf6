// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package report

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// RenderPrometheus exposes r's per-level hit/miss counts and coherence
// stats as Prometheus text-format gauges, for `--prometheus` one-shot
// scraping of a completed run.
func RenderPrometheus(r Report) ([]byte, error) {
	registry := prometheus.NewRegistry()

	levelGauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cachexplorer_level_accesses_total",
		Help: "Cache level accesses by level and outcome.",
	}, []string{"level", "outcome"})
	hitRateGauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cachexplorer_level_hit_rate",
		Help: "Cache level hit rate.",
	}, []string{"level"})

	registry.MustRegister(levelGauge, hitRateGauge)

	observe := func(level string, s LevelStats) {
		levelGauge.WithLabelValues(level, "hits").Set(float64(s.Hits))
		levelGauge.WithLabelValues(level, "misses").Set(float64(s.Misses))
		hitRateGauge.WithLabelValues(level).Set(s.HitRate)
	}
	observe("l1d", r.Levels.L1D)
	observe("l1i", r.Levels.L1I)
	observe("l2", r.Levels.L2)
	if r.Levels.L3 != nil {
		observe("l3", *r.Levels.L3)
	}

	if r.Coherence != nil {
		coherenceGauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cachexplorer_coherence_events_total",
			Help: "Coherence invalidations and false-sharing events.",
		}, []string{"kind"})
		registry.MustRegister(coherenceGauge)
		coherenceGauge.WithLabelValues("invalidations").Set(float64(r.Coherence.Invalidations))
		coherenceGauge.WithLabelValues("false_sharing_events").Set(float64(r.Coherence.FalseSharingEvents))
	}

	metricFamilies, err := registry.Gather()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metricFamilies {
		if err := encoder.Encode(mf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
