// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// #nosec G404
package metrics

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func TestPromMetrics(t *testing.T) {
	InitializePrometheusMetrics()

	// 2 ways of accessing it - useful to avoid lookups
	count1 := Counter("count1")
	Counter("count2")
	countVect := CounterVec("countVec1", []string{"zeroOrOne"})
	hist := Histogram("hist1", nil)
	gauge1 := Gauge("gauge1")

	count1.Add(1)
	randCount2 := rand.N(100) + 1
	for range randCount2 {
		Counter("count2").Add(1)
	}

	histTotal := 0
	for i := range rand.N(100) + 2 {
		hist.Observe(int64(i))
		histTotal += i
	}

	totalCountVec := 0
	for i := range rand.N(100) + 2 {
		zeroOrOne := i % 2
		countVect.AddWithLabel(int64(i), map[string]string{"zeroOrOne": strconv.Itoa(zeroOrOne)})
		totalCountVec += i
	}

	gauge1.Add(10)
	gauge1.Set(7)

	// Gather the metrics
	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	metrics := make(map[string]*dto.MetricFamily)
	for _, mf := range metricFamilies {
		metrics[mf.GetName()] = mf
	}

	require.Equal(t, float64(1), metrics["stakedb_count1"].Metric[0].GetCounter().GetValue())
	require.Equal(t, float64(randCount2), metrics["stakedb_count2"].Metric[0].GetCounter().GetValue())
	require.Equal(t, float64(histTotal), metrics["stakedb_hist1"].Metric[0].GetHistogram().GetSampleSum())

	sumCountVec := metrics["stakedb_countVec1"].Metric[0].GetCounter().GetValue() +
		metrics["stakedb_countVec1"].Metric[1].GetCounter().GetValue()
	require.Equal(t, float64(totalCountVec), sumCountVec)

	require.Equal(t, float64(7), metrics["stakedb_gauge1"].Metric[0].GetGauge().GetValue())
}

func TestSamples(t *testing.T) {
	metrics = defaultNoopMetrics()
	samples, err := Samples()
	require.NoError(t, err)
	require.Empty(t, samples)

	InitializePrometheusMetrics()
	Counter("samples_count").Add(3)
	CounterVec("samples_vec", []string{"result"}).AddWithLabel(2, map[string]string{"result": "ok"})
	Gauge("samples_gauge").Set(-4)
	h := Histogram("samples_hist", BucketFlushMs)
	h.Observe(5)
	h.Observe(15)

	samples, err = Samples()
	require.NoError(t, err)

	byName := make(map[string]float64)
	for i, s := range samples {
		require.True(t, strings.HasPrefix(s.Name, "stakedb_"))
		if i > 0 {
			require.Less(t, samples[i-1].Name, s.Name)
		}
		byName[s.Name] = s.Value
	}
	require.Equal(t, float64(3), byName["stakedb_samples_count"])
	require.Equal(t, float64(2), byName[`stakedb_samples_vec{result="ok"}`])
	require.Equal(t, float64(-4), byName["stakedb_samples_gauge"])
	require.Equal(t, float64(2), byName["stakedb_samples_hist_count"])
	require.Equal(t, float64(20), byName["stakedb_samples_hist_sum"])
}

func TestLazyLoading(t *testing.T) {
	metrics = defaultNoopMetrics() // make sure it starts in the default state of noopMeter

	for _, a := range []any{
		Gauge("noopGauge"),
		Counter("noopCounter"),
		CounterVec("noopCounter", nil),
		Histogram("noopHist", nil),
	} {
		require.IsType(t, &noopMeters{}, a)
	}

	lazyGauge := LazyLoadGauge("lazyGauge")
	lazyCounter := LazyLoadCounter("lazyCounter")
	lazyCounterVec := LazyLoadCounterVec("lazyCounterVec", nil)
	lazyHistogram := LazyLoadHistogram("lazyHistogram", nil)

	// after initialization, newly created metrics become of the prometheus type
	InitializePrometheusMetrics()

	require.IsType(t, &promGaugeMeter{}, lazyGauge())
	require.IsType(t, &promCountMeter{}, lazyCounter())
	require.IsType(t, &promCountVecMeter{}, lazyCounterVec())
	require.IsType(t, &promHistogramMeter{}, lazyHistogram())
}
