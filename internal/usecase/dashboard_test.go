package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketMinute/internal/domain/models"
)

func TestDashboardJoinsBothHalves(t *testing.T) {
	r := &fakeReader{known: map[string]models.TickerSnapshot{
		"NVDA": {Symbol: "NVDA", Price: 900},
		"KO":   {Symbol: "KO", Price: 60},
	}}
	uc := NewDashboardUseCase(NewSnapshotsUseCase(r, 20), newSignals(topFixture(), 0), time.Second, nil)

	d, err := uc.Build(context.Background(), "nvda,ko,tsla")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(d.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(d.Rows))
	}
	if d.Rows[0].Symbol != "NVDA" || d.Rows[0].Snapshot == nil || d.Rows[0].Signal == nil {
		t.Fatalf("NVDA row incomplete: %+v", d.Rows[0])
	}
	if d.Rows[2].Snapshot != nil || d.Rows[2].Signal == nil {
		t.Fatalf("TSLA row should have a signal only: %+v", d.Rows[2])
	}
	if d.Cache.Total != 3 {
		t.Fatalf("cache stats = %+v", d.Cache)
	}
}

func TestDashboardKeepsSnapshotsWhenSignalsFail(t *testing.T) {
	r := &fakeReader{known: map[string]models.TickerSnapshot{"AAPL": {Symbol: "AAPL", Price: 190}}}
	uc := NewDashboardUseCase(NewSnapshotsUseCase(r, 20), newSignals(&fakeSource{err: errors.New("down")}, 0), time.Second, nil)

	d, err := uc.Build(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if d.Rows[0].Snapshot == nil || d.Rows[0].Signal != nil {
		t.Fatalf("unexpected row %+v", d.Rows[0])
	}
	if d.Errors["signals"] == "" {
		t.Fatalf("signal failure should be reported: %v", d.Errors)
	}
}

func TestDashboardRequiresSymbols(t *testing.T) {
	uc := NewDashboardUseCase(NewSnapshotsUseCase(&fakeReader{}, 20), newSignals(topFixture(), 0), 0, nil)
	if _, err := uc.Build(context.Background(), ""); !errors.Is(err, ErrNoSymbols) {
		t.Fatalf("err = %v, want ErrNoSymbols", err)
	}
}
