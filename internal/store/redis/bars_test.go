package redis

import (
	"reflect"
	"testing"

	"tickerhub/internal/model"
)

func bar(ts int64, close float64) model.Bar {
	return model.Bar{Symbol: "QQQ", TF: model.TFFine, Time: ts, Close: close}
}

func TestDedupSortOrdersAndDeduplicates(t *testing.T) {
	in := []model.Bar{bar(120, 3), bar(0, 1), bar(60, 2), bar(60, 2.5)}

	out := DedupSort(in)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Time <= out[i-1].Time {
			t.Fatalf("not strictly increasing at %d: %d <= %d", i, out[i].Time, out[i-1].Time)
		}
	}
	// Last write wins for the duplicated timestamp.
	if out[1].Close != 2.5 {
		t.Fatalf("dup timestamp close = %v, want 2.5 (last write)", out[1].Close)
	}
}

func TestDedupSortIdempotent(t *testing.T) {
	in := []model.Bar{bar(300, 5), bar(0, 1), bar(60, 2), bar(300, 6), bar(240, 4)}

	once := DedupSort(in)
	twice := DedupSort(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestDedupSortNoOpOnSortedUnique(t *testing.T) {
	in := []model.Bar{bar(0, 1), bar(60, 2), bar(120, 3)}

	out := DedupSort(in)
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("sorted unique input changed: %+v -> %+v", in, out)
	}
}

func TestTruncateKeepsTail(t *testing.T) {
	in := []model.Bar{bar(0, 1), bar(60, 2), bar(120, 3), bar(180, 4)}

	out := Truncate(in, 2)
	if len(out) != 2 || out[0].Time != 120 || out[1].Time != 180 {
		t.Fatalf("truncate kept wrong bars: %+v", out)
	}

	// Under the cap it is a no-op.
	same := Truncate(in, 10)
	if len(same) != 4 {
		t.Fatalf("truncate below cap changed len: %d", len(same))
	}
}
