// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	dto "github.com/prometheus/client_model/go"
)

// Sample is one flattened metric value.
type Sample struct {
	Name  string // full name with labels, e.g. stakedb_flushes_count{result="ok"}
	Value float64
}

// Samples gathers the registered stakedb metrics, sorted by name.
// Histograms yield their _count and _sum. It returns nothing until
// InitializePrometheusMetrics has been called.
func Samples() ([]Sample, error) {
	if _, ok := metrics.(*prometheusMetrics); !ok {
		return nil, nil
	}
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, errors.Wrap(err, "gather metrics")
	}

	var samples []Sample
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			name := mf.GetName() + formatLabels(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				samples = append(samples, Sample{name, m.GetCounter().GetValue()})
			case dto.MetricType_GAUGE:
				samples = append(samples, Sample{name, m.GetGauge().GetValue()})
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				samples = append(samples,
					Sample{mf.GetName() + "_count" + formatLabels(m.GetLabel()), float64(h.GetSampleCount())},
					Sample{mf.GetName() + "_sum" + formatLabels(m.GetLabel()), h.GetSampleSum()},
				)
			}
		}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
	return samples, nil
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.GetName()+`="`+l.GetValue()+`"`)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
