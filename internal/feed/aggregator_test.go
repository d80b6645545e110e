package feed

import (
	"testing"

	"tickerhub/internal/model"
)

func fineBar(ts int64, o, h, l, c float64, v int64) model.Bar {
	return model.Bar{Symbol: "QQQ", TF: model.TFFine, Time: ts, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestAggregatorMergesBucket(t *testing.T) {
	a := NewAggregator()

	partial, fin := a.Update(fineBar(600, 10, 11, 9, 10.5, 100))
	if fin != nil {
		t.Fatalf("unexpected finalize on first bar: %+v", fin)
	}
	if partial.TF != model.TFCoarse || partial.Time != 600 {
		t.Fatalf("partial = tf=%s time=%d, want 5m 600", partial.TF, partial.Time)
	}

	partial, _ = a.Update(fineBar(660, 10.5, 12, 10, 11, 50))
	if partial.Open != 10 || partial.High != 12 || partial.Low != 9 || partial.Close != 11 || partial.Volume != 150 {
		t.Fatalf("merged partial wrong: %+v", partial)
	}
}

func TestAggregatorFinalizesOnLastMinute(t *testing.T) {
	a := NewAggregator()

	for ts := int64(600); ts < 840; ts += 60 {
		if _, fin := a.Update(fineBar(ts, 10, 10, 10, 10, 1)); fin != nil {
			t.Fatalf("finalized early at ts=%d", ts)
		}
	}
	// 840 = 600 + 240 is the fifth and last slot of the bucket.
	_, fin := a.Update(fineBar(840, 10, 10, 10, 10, 1))
	if len(fin) != 1 {
		t.Fatalf("want 1 finalized bar, got %d", len(fin))
	}
	if fin[0].Time != 600 || fin[0].Volume != 5 {
		t.Fatalf("finalized = time=%d vol=%d, want 600, 5", fin[0].Time, fin[0].Volume)
	}
}

func TestAggregatorFinalizesOnGap(t *testing.T) {
	a := NewAggregator()

	a.Update(fineBar(600, 10, 10, 10, 10, 1))
	// Jump two buckets ahead; the open 600 bucket must finalize as-is.
	partial, fin := a.Update(fineBar(1260, 11, 11, 11, 11, 2))
	if len(fin) != 1 || fin[0].Time != 600 {
		t.Fatalf("gap did not finalize old bucket: %+v", fin)
	}
	if partial.Time != 1200 || partial.Open != 11 {
		t.Fatalf("new bucket wrong: %+v", partial)
	}
}

func TestAggregatorGapLandingOnLastMinute(t *testing.T) {
	a := NewAggregator()

	a.Update(fineBar(600, 10, 10, 10, 10, 1))
	// 1440 opens bucket 1200 AND is its last slot: both finalize at once.
	_, fin := a.Update(fineBar(1440, 11, 11, 11, 11, 2))
	if len(fin) != 2 {
		t.Fatalf("want 2 finalized bars, got %d: %+v", len(fin), fin)
	}
	if fin[0].Time != 600 || fin[1].Time != 1200 {
		t.Fatalf("finalize order wrong: %d, %d", fin[0].Time, fin[1].Time)
	}
}

func TestAggregatorPerSymbolIsolation(t *testing.T) {
	a := NewAggregator()

	a.Update(fineBar(600, 10, 10, 10, 10, 1))
	other := fineBar(600, 99, 99, 99, 99, 1)
	other.Symbol = "AAPL"
	a.Update(other)

	partial, _ := a.Update(fineBar(660, 10, 10, 10, 10, 1))
	if partial.Symbol != "QQQ" || partial.High != 10 {
		t.Fatalf("cross-symbol contamination: %+v", partial)
	}
}

func TestAggregatorFlush(t *testing.T) {
	a := NewAggregator()

	a.Update(fineBar(600, 10, 10, 10, 10, 1))
	open := a.Flush("QQQ")
	if open == nil || open.Time != 600 {
		t.Fatalf("flush = %+v, want open 600 bucket", open)
	}
	if a.Flush("QQQ") != nil {
		t.Fatalf("second flush should be nil")
	}
}
