package usecase

import (
	"context"
	"errors"
	"testing"

	"MarketMinute/internal/domain/models"
)

func TestGetSnapshotsNormalizesSymbols(t *testing.T) {
	r := &fakeReader{known: map[string]models.TickerSnapshot{"AAPL": {Symbol: "AAPL", Price: 190}}}
	uc := NewSnapshotsUseCase(r, 2)

	res, err := uc.GetSnapshots(context.Background(), " aapl, msft ,AAPL, goog")
	if err != nil {
		t.Fatalf("GetSnapshots: %v", err)
	}
	if len(res.Symbols) != 2 || res.Symbols[0] != "AAPL" || res.Symbols[1] != "MSFT" {
		t.Fatalf("symbols = %v, want [AAPL MSFT]", res.Symbols)
	}
	if len(res.Snapshots) != 1 || res.Stats.Total != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestGetSnapshotsRejectsEmptyList(t *testing.T) {
	r := &fakeReader{}
	uc := NewSnapshotsUseCase(r, 20)
	if _, err := uc.GetSnapshots(context.Background(), " , ,"); !errors.Is(err, ErrNoSymbols) {
		t.Fatalf("err = %v, want ErrNoSymbols", err)
	}
	if len(r.calls) != 0 {
		t.Fatalf("reader should not be called")
	}
}
