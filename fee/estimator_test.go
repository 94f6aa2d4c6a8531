// Copyright 2025 Proven Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock pins the estimator to a known hour of day
func fixedClock(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2025, 6, 1, hour, 30, 0, 0, time.UTC)
	}
}

func TestEstimateOffPeak(t *testing.T) {
	e := NewEstimator(Config{
		PeakStartHour: 14,
		PeakEndHour:   18,
		Now:           fixedClock(10),
	})

	// 2 KB payload: 0.05 base + 2 * 0.0005 surcharge = 0.051 subtotal,
	// plus 10% buffer
	est := e.Estimate(OperationMint, 2048)
	assert.Equal(t, OperationMint, est.Operation)
	assert.InDelta(t, 0.05, est.BaseFee, 1e-9)
	assert.InDelta(t, 0.001, est.SizeSurcharge, 1e-9)
	assert.Zero(t, est.CongestionSurcharge)
	assert.InDelta(t, 0.0051, est.Buffer, 1e-9)
	assert.InDelta(t, 0.0561, est.Total, 1e-9)
	assert.Equal(t, ConfidenceHigh, est.Confidence)
}

func TestEstimatePeakWindow(t *testing.T) {
	e := NewEstimator(Config{
		PeakStartHour: 14,
		PeakEndHour:   18,
		Now:           fixedClock(15),
	})

	est := e.Estimate(OperationMint, 0)
	// 0.05 base, 50% congestion surcharge, then 10% buffer
	assert.InDelta(t, 0.025, est.CongestionSurcharge, 1e-9)
	assert.InDelta(t, 0.0825, est.Total, 1e-9)
	assert.Equal(t, ConfidenceMedium, est.Confidence)
}

func TestEstimateNeutralPeakMultiplier(t *testing.T) {
	// A multiplier of exactly 1 is a valid configuration: the peak window
	// stays defined but adds no surcharge.
	e := NewEstimator(Config{
		PeakStartHour:  14,
		PeakEndHour:    18,
		PeakMultiplier: 1.0,
		Now:            fixedClock(15),
	})
	require.InDelta(t, 1.0, e.cfg.PeakMultiplier, 1e-9)

	est := e.Estimate(OperationMint, 0)
	assert.Zero(t, est.CongestionSurcharge)
	assert.InDelta(t, 0.055, est.Total, 1e-9)

	// Zero still means unset and takes the default
	d := NewEstimator(Config{})
	assert.InDelta(t, DefaultPeakMultiplier, d.cfg.PeakMultiplier, 1e-9)
}

func TestEstimatePeakWindowWrapsMidnight(t *testing.T) {
	cfg := Config{
		PeakStartHour: 22,
		PeakEndHour:   2,
	}

	inWindow := NewEstimator(cfg)
	inWindow.cfg.Now = fixedClock(23)
	assert.Positive(
		t,
		inWindow.Estimate(OperationMint, 0).CongestionSurcharge,
	)

	earlyMorning := NewEstimator(cfg)
	earlyMorning.cfg.Now = fixedClock(1)
	assert.Positive(
		t,
		earlyMorning.Estimate(OperationMint, 0).CongestionSurcharge,
	)

	offPeak := NewEstimator(cfg)
	offPeak.cfg.Now = fixedClock(12)
	assert.Zero(t, offPeak.Estimate(OperationMint, 0).CongestionSurcharge)
}

func TestEstimateNoPeakWindowConfigured(t *testing.T) {
	e := NewEstimator(Config{Now: fixedClock(12)})
	est := e.Estimate(OperationTransfer, 0)
	assert.Zero(t, est.CongestionSurcharge)
	assert.InDelta(t, 0.0011, est.Total, 1e-9)
}

func TestEstimateFallback(t *testing.T) {
	e := NewEstimator(Config{Now: fixedClock(12)})

	// Unknown operation
	est := e.Estimate(Operation("burn"), 0)
	assert.Equal(t, ConfidenceLow, est.Confidence)
	assert.InDelta(t, DefaultFallbackFee, est.Total, 1e-9)
	assert.Zero(t, est.SizeSurcharge)

	// Negative payload size
	est = e.Estimate(OperationMint, -1)
	assert.Equal(t, ConfidenceLow, est.Confidence)
	assert.InDelta(t, DefaultFallbackFee, est.Total, 1e-9)
}

func TestEstimateBatchDiscount(t *testing.T) {
	e := NewEstimator(Config{Now: fixedClock(12)})

	pricing := e.EstimateBatch(20)
	assert.Equal(t, 20, pricing.ItemCount)
	// 20 items at half-saturation yields exactly half the max discount
	assert.InDelta(t, 0.15, pricing.DiscountRate, 1e-9)
	assert.InDelta(
		t,
		pricing.SingleCost*20,
		pricing.NaiveTotal,
		1e-9,
	)
	assert.InDelta(
		t,
		pricing.NaiveTotal*0.85,
		pricing.BatchTotal,
		1e-9,
	)
	assert.InDelta(
		t,
		pricing.NaiveTotal-pricing.BatchTotal,
		pricing.Savings,
		1e-9,
	)
}

func TestEstimateBatchDiscountSaturates(t *testing.T) {
	e := NewEstimator(Config{Now: fixedClock(12)})

	small := e.EstimateBatch(5)
	large := e.EstimateBatch(500)
	assert.Less(t, small.DiscountRate, large.DiscountRate)
	assert.Less(t, large.DiscountRate, DefaultMaxBatchDiscount)
}

func TestEstimateBatchEmpty(t *testing.T) {
	e := NewEstimator(Config{})
	pricing := e.EstimateBatch(0)
	assert.Zero(t, pricing.ItemCount)
	assert.Zero(t, pricing.BatchTotal)
	assert.Equal(t, DefaultMinBatchSize, pricing.RecommendedBatchSize)
}

func TestRecommendedBatchSize(t *testing.T) {
	e := NewEstimator(Config{})
	tests := []struct {
		itemCount int
		want      int
	}{
		{1, 5},   // floor
		{10, 10}, // sqrt(100)
		{40, 20}, // sqrt(400)
		{90, 25}, // sqrt(900)=30, clamped to max
	}
	for _, tt := range tests {
		got := e.EstimateBatch(tt.itemCount).RecommendedBatchSize
		assert.Equal(t, tt.want, got, "itemCount=%d", tt.itemCount)
	}
}

func TestAnalyzeAccuracyEmpty(t *testing.T) {
	e := NewEstimator(Config{})
	report := e.AnalyzeAccuracy()
	assert.Zero(t, report.Samples)
	assert.InDelta(t, DefaultBufferPercent, report.CurrentBufferPercent, 1e-9)
	assert.InDelta(
		t,
		DefaultBufferPercent,
		report.SuggestedBufferPercent,
		1e-9,
	)
}

func TestAnalyzeAccuracySuggestsSmallerBuffer(t *testing.T) {
	e := NewEstimator(Config{})

	// Consistently overestimating by 5%
	for range 10 {
		e.RecordActual(OperationMint, 1.05, 1.0)
	}
	report := e.AnalyzeAccuracy()
	assert.Equal(t, 10, report.Samples)
	assert.InDelta(t, 1.0, report.OverestimateRate, 1e-9)
	assert.Zero(t, report.UnderestimateRate)
	assert.InDelta(t, 0.05, report.MeanRelativeError, 1e-9)
	assert.InDelta(t, 5.0, report.SuggestedBufferPercent, 1e-9)
	// Advisory only: the live buffer is unchanged
	assert.InDelta(t, 10.0, report.CurrentBufferPercent, 1e-9)
}

func TestAnalyzeAccuracySuggestionFloorsAtZero(t *testing.T) {
	e := NewEstimator(Config{})

	// Overestimating by 50% would suggest a negative buffer
	for range 5 {
		e.RecordActual(OperationMint, 1.5, 1.0)
	}
	report := e.AnalyzeAccuracy()
	assert.Zero(t, report.SuggestedBufferPercent)
}

func TestRecordActualIgnoresInvalidSamples(t *testing.T) {
	e := NewEstimator(Config{})
	e.RecordActual(OperationMint, 0, 1.0)
	e.RecordActual(OperationMint, 1.0, -1)
	assert.Zero(t, e.AnalyzeAccuracy().Samples)
}

func TestApplyBuffer(t *testing.T) {
	e := NewEstimator(Config{
		Now: fixedClock(12),
	})

	before := e.Estimate(OperationMint, 0)
	require.InDelta(t, 0.055, before.Total, 1e-9)

	e.ApplyBuffer(20)
	after := e.Estimate(OperationMint, 0)
	assert.InDelta(t, 0.06, after.Total, 1e-9)

	// Negative values clamp to zero
	e.ApplyBuffer(-5)
	assert.InDelta(t, 0.05, e.Estimate(OperationMint, 0).Total, 1e-9)
}
