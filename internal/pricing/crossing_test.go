package pricing_test

import (
	"testing"

	"HeadToHead/internal/pricing"
)

// ============================================================================
// Test: DetectCrossing direction and ordering
// ============================================================================

func TestDetectCrossing_UpFirst(t *testing.T) {
	prices := []uint64{
		100_000, // 100.000
		105_000, // 105.000 (5% increase)
		95_000,  // 95.000
	}

	dir, ok := pricing.DetectCrossing(prices, 0, 5, 3, 0)
	if !ok {
		t.Fatal("expected a crossing")
	}
	if dir != pricing.DirectionUp {
		t.Errorf("direction: got %s, want Up", dir)
	}
}

func TestDetectCrossing_DownFirst(t *testing.T) {
	prices := []uint64{
		100_000, // 100.000
		95_000,  // 95.000 (5% decrease)
		105_000, // 105.000
	}

	dir, ok := pricing.DetectCrossing(prices, 0, 5, 3, 0)
	if !ok {
		t.Fatal("expected a crossing")
	}
	if dir != pricing.DirectionDown {
		t.Errorf("direction: got %s, want Down", dir)
	}
}

func TestDetectCrossing_NoCrossing(t *testing.T) {
	prices := []uint64{
		100_000, // 100.000
		101_000, // 101.000
		102_000, // 102.000
		103_000, // 103.000
	}

	if _, ok := pricing.DetectCrossing(prices, 0, 5, 3, 0); ok {
		t.Error("expected no crossing within the 5% band")
	}
}

func TestDetectCrossing_ExactThresholds(t *testing.T) {
	// Boundary comparisons are inclusive: an exact 5% move crosses.
	up := []uint64{100_000, 105_000}
	if dir, ok := pricing.DetectCrossing(up, 0, 5, 3, 0); !ok || dir != pricing.DirectionUp {
		t.Errorf("exact +5%%: got (%s, %v), want (Up, true)", dir, ok)
	}

	down := []uint64{100_000, 95_000}
	if dir, ok := pricing.DetectCrossing(down, 0, 5, 3, 0); !ok || dir != pricing.DirectionDown {
		t.Errorf("exact -5%%: got (%s, %v), want (Down, true)", dir, ok)
	}
}

func TestDetectCrossing_JustInsideBand(t *testing.T) {
	// One smallest unit inside the band must NOT cross; a float
	// approximation here would flip the comparison.
	prices := []uint64{100_000, 104_999, 95_001}
	if _, ok := pricing.DetectCrossing(prices, 0, 5, 3, 0); ok {
		t.Error("prices one unit inside the band must not cross")
	}
}

// ============================================================================
// Test: DetectCrossing edge policy
// ============================================================================

func TestDetectCrossing_StartIndexOutOfRange(t *testing.T) {
	prices := []uint64{100_000, 105_000}

	if _, ok := pricing.DetectCrossing(prices, 5, 5, 3, 0); ok {
		t.Error("out-of-range start index must yield no crossing")
	}
	if _, ok := pricing.DetectCrossing(prices, len(prices), 5, 3, 0); ok {
		t.Error("start index == len must yield no crossing")
	}
	if _, ok := pricing.DetectCrossing(prices, -1, 5, 3, 0); ok {
		t.Error("negative start index must yield no crossing")
	}
}

func TestDetectCrossing_EmptySeries(t *testing.T) {
	if _, ok := pricing.DetectCrossing(nil, 0, 5, 3, 0); ok {
		t.Error("empty series must yield no crossing")
	}
}

func TestDetectCrossing_ReferenceIsLastPoint(t *testing.T) {
	// Nothing after the reference: nothing to scan.
	prices := []uint64{100_000}
	if _, ok := pricing.DetectCrossing(prices, 0, 5, 3, 0); ok {
		t.Error("series ending at the reference must yield no crossing")
	}
}

func TestDetectCrossing_ZeroThresholdResolvesUp(t *testing.T) {
	// With a zero threshold both bounds collapse onto the reference. The
	// up check wins at equal thresholds, so an unchanged price is Up.
	prices := []uint64{100_000, 100_000}

	dir, ok := pricing.DetectCrossing(prices, 0, 0, 3, 0)
	if !ok {
		t.Fatal("expected a crossing at zero threshold")
	}
	if dir != pricing.DirectionUp {
		t.Errorf("zero-threshold tie: got %s, want Up", dir)
	}
}

// ============================================================================
// Test: DetectCrossing decimal scaling variants
// ============================================================================

func TestDetectCrossing_ScaledDecimals(t *testing.T) {
	tests := []struct {
		name               string
		prices             []uint64
		maxPercentage      uint64
		priceDecimals      int32
		percentageDecimals int32
		wantDir            pricing.Direction
		wantOK             bool
	}{
		{
			// 5.00% with percentage_decimals=2, prices at 6 decimals
			name:               "six decimal prices up",
			prices:             []uint64{100_000_000, 105_000_000, 99_000_000},
			maxPercentage:      500,
			priceDecimals:      6,
			percentageDecimals: 2,
			wantDir:            pricing.DirectionUp,
			wantOK:             true,
		},
		{
			// 10.00% down after an in-band dip
			name:               "six decimal prices down",
			prices:             []uint64{200_000_000, 190_000_000, 180_000_000},
			maxPercentage:      1000,
			priceDecimals:      6,
			percentageDecimals: 2,
			wantDir:            pricing.DirectionDown,
			wantOK:             true,
		},
		{
			// Fractional threshold: 0.25%
			name:               "fractional percentage inside band",
			prices:             []uint64{100_000, 100_200},
			maxPercentage:      25,
			priceDecimals:      3,
			percentageDecimals: 2,
			wantOK:             false,
		},
		{
			name:               "fractional percentage exact crossing",
			prices:             []uint64{100_000, 100_250},
			maxPercentage:      25,
			priceDecimals:      3,
			percentageDecimals: 2,
			wantDir:            pricing.DirectionUp,
			wantOK:             true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, ok := pricing.DetectCrossing(
				tt.prices, 0, tt.maxPercentage, tt.priceDecimals, tt.percentageDecimals,
			)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if ok && dir != tt.wantDir {
				t.Errorf("direction: got %s, want %s", dir, tt.wantDir)
			}
		})
	}
}

func TestDetectCrossing_LargePricesNoOverflow(t *testing.T) {
	// Values near the uint64 ceiling must compare exactly.
	base := uint64(16_000_000_000_000_000_000)
	prices := []uint64{base, base + base/20} // exactly +5%

	dir, ok := pricing.DetectCrossing(prices, 0, 5, 0, 0)
	if !ok || dir != pricing.DirectionUp {
		t.Errorf("large price crossing: got (%s, %v), want (Up, true)", dir, ok)
	}
}

// ============================================================================
// Test: DetectCrossing prefix stability
// ============================================================================

func TestDetectCrossing_PrefixStable(t *testing.T) {
	prefix := []uint64{100_000, 102_000, 105_000}

	wantDir, wantOK := pricing.DetectCrossing(prefix, 0, 5, 3, 0)
	if !wantOK || wantDir != pricing.DirectionUp {
		t.Fatalf("prefix: got (%s, %v), want (Up, true)", wantDir, wantOK)
	}

	// Appending anything after the crossing, including a deep drop, must not
	// change the outcome; resolution may be re-attempted many times.
	extended := append(append([]uint64{}, prefix...), 90_000, 50_000, 110_000)

	gotDir, gotOK := pricing.DetectCrossing(extended, 0, 5, 3, 0)
	if gotOK != wantOK || gotDir != wantDir {
		t.Errorf("extended series changed the result: got (%s, %v), want (%s, %v)",
			gotDir, gotOK, wantDir, wantOK)
	}
}

func TestDetectCrossing_MidSeriesStart(t *testing.T) {
	// The reference point is positional, not always the first element.
	prices := []uint64{50_000, 100_000, 104_000, 95_000}

	dir, ok := pricing.DetectCrossing(prices, 1, 5, 3, 0)
	if !ok {
		t.Fatal("expected a crossing from index 1")
	}
	if dir != pricing.DirectionDown {
		t.Errorf("direction: got %s, want Down", dir)
	}
}
