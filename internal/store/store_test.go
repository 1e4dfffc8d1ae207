package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"backtester/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	bp := ps.barPath("aapl", 2024)
	wantBarPath := filepath.Join("/data", "daily", "AAPL", "2024.parquet")
	if bp != wantBarPath {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, wantBarPath)
	}

	rp := ps.rangesPath("AAPL")
	wantRangesPath := filepath.Join("/data", "daily", "AAPL", "_ranges.parquet")
	if rp != wantRangesPath {
		t.Errorf("rangesPath mismatch:\n  got  %s\n  want %s", rp, wantRangesPath)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.Bar{
		{
			Symbol:     "AAPL",
			Timestamp:  day(2024, 1, 2),
			Open:       185.0,
			High:       186.5,
			Low:        184.0,
			Close:      185.5,
			Volume:     50000000,
			TradeCount: 500000,
			VWAP:       185.25,
		},
		{
			Symbol:     "AAPL",
			Timestamp:  day(2024, 1, 3),
			Open:       185.5,
			High:       187.0,
			Low:        185.0,
			Close:      186.0,
			Volume:     45000000,
			TradeCount: 450000,
			VWAP:       185.75,
		},
	}

	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ps.ReadBars(ctx, "AAPL", day(2024, 1, 1), day(2024, 12, 31))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 185.5 {
		t.Errorf("first bar Close = %v, want 185.5", got[0].Close)
	}
	if got[1].Close != 186.0 {
		t.Errorf("second bar Close = %v, want 186.0", got[1].Close)
	}
	if !got[1].Timestamp.Equal(day(2024, 1, 3)) {
		t.Errorf("second bar Timestamp = %v, want 2024-01-03", got[1].Timestamp)
	}

	// Range filter is inclusive and drops bars outside it.
	got, err = ps.ReadBars(ctx, "AAPL", day(2024, 1, 3), day(2024, 1, 3))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 1 || got[0].Close != 186.0 {
		t.Errorf("ReadBars(single day) = %+v, want one bar with Close 186", got)
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars1 := []domain.Bar{
		{Symbol: "MSFT", Timestamp: day(2024, 3, 1), Open: 400.0, High: 405.0, Low: 399.0, Close: 403.0, Volume: 30000000},
	}
	if err := ps.WriteBars(ctx, bars1); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// A new day merges and a repeated day replaces the stored bar.
	bars2 := []domain.Bar{
		{Symbol: "MSFT", Timestamp: day(2024, 3, 1), Open: 400.0, High: 405.0, Low: 399.0, Close: 404.0, Volume: 30000000},
		{Symbol: "MSFT", Timestamp: day(2024, 3, 4), Open: 403.0, High: 410.0, Low: 402.0, Close: 408.0, Volume: 35000000},
	}
	if err := ps.WriteBars(ctx, bars2); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	got, err := ps.ReadBars(ctx, "MSFT", day(2024, 1, 1), day(2024, 12, 31))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 404.0 {
		t.Errorf("merged bar Close = %v, want 404 (incoming wins)", got[0].Close)
	}
}

func TestParquetStoreReadAcrossYears(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "SPY", Timestamp: day(2023, 12, 29), Close: 475.0},
		{Symbol: "SPY", Timestamp: day(2024, 1, 2), Close: 472.0},
	}
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ps.ReadBars(ctx, "SPY", day(2023, 12, 1), day(2024, 1, 31))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 || got[0].Close != 475.0 || got[1].Close != 472.0 {
		t.Errorf("ReadBars across years = %+v, want 475 then 472", got)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	symbols, err := ps.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols on empty store: %v", err)
	}
	if len(symbols) != 0 {
		t.Errorf("ListSymbols on empty store = %v, want none", symbols)
	}

	bars := []domain.Bar{
		{Symbol: "GOOGL", Timestamp: day(2024, 1, 2), Open: 140.0, High: 141.0, Low: 139.0, Close: 140.5, Volume: 20000000},
		{Symbol: "AAPL", Timestamp: day(2024, 1, 2), Open: 185.0, High: 186.0, Low: 184.0, Close: 185.5, Volume: 50000000},
	}
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err = ps.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("ListSymbols returned %d symbols, want 2", len(symbols))
	}
	if symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}
}

func TestParquetStoreCoverage(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	ok, err := ps.Covers(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	if err != nil {
		t.Fatalf("Covers: %v", err)
	}
	if ok {
		t.Error("Covers on empty store = true, want false")
	}

	if err := ps.MarkCovered(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 31)); err != nil {
		t.Fatalf("MarkCovered: %v", err)
	}
	if err := ps.MarkCovered(ctx, "AAPL", day(2024, 2, 1), day(2024, 2, 29)); err != nil {
		t.Fatalf("MarkCovered: %v", err)
	}

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside first", day(2024, 1, 5), day(2024, 1, 20), true},
		{"spans adjacent ranges", day(2024, 1, 15), day(2024, 2, 15), true},
		{"past end", day(2024, 2, 15), day(2024, 3, 15), false},
		{"before start", day(2023, 12, 15), day(2024, 1, 15), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ps.Covers(ctx, "AAPL", tt.start, tt.end)
			if err != nil {
				t.Fatalf("Covers: %v", err)
			}
			if got != tt.want {
				t.Errorf("Covers(%s, %s) = %v, want %v",
					tt.start.Format(domain.DateLayout), tt.end.Format(domain.DateLayout), got, tt.want)
			}
		})
	}
}

func TestMergeRanges(t *testing.T) {
	ms := func(t time.Time) int64 { return t.UnixMilli() }
	in := []RangeRecord{
		{Start: ms(day(2024, 3, 1)), End: ms(day(2024, 3, 31))},
		{Start: ms(day(2024, 1, 1)), End: ms(day(2024, 1, 31))},
		{Start: ms(day(2024, 1, 20)), End: ms(day(2024, 2, 10))},
	}
	got := mergeRanges(in)
	if len(got) != 2 {
		t.Fatalf("mergeRanges returned %d ranges, want 2: %+v", len(got), got)
	}
	if got[0].Start != ms(day(2024, 1, 1)) || got[0].End != ms(day(2024, 2, 10)) {
		t.Errorf("first merged range = %+v, want Jan 1 to Feb 10", got[0])
	}
	if mergeRanges(nil) != nil {
		t.Error("mergeRanges(nil) should be nil")
	}
}

func TestSQLiteStoreOpen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	}()

	if err := store.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	run := &domain.Run{
		ID:                   "run-1",
		Symbol:               "AAPL",
		StartDate:            "2024-01-01",
		EndDate:              "2024-06-30",
		Strategy:             domain.StrategyMovingAverage,
		ShortWindow:          20,
		LongWindow:           50,
		InitialCapital:       100000,
		FinalValue:           104250.5,
		TotalReturn:          0.042505,
		AnnualizedReturn:     0.088,
		AnnualizedVolatility: 0.19,
		SharpeRatio:          0.46,
		MaxDrawdown:          -0.071,
		TradeCount:           6,
		CreatedAt:            time.Date(2024, 7, 1, 12, 30, 0, 0, time.UTC),
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, run.CreatedAt)
	}
	gotCmp, wantCmp := *got, *run
	gotCmp.CreatedAt, wantCmp.CreatedAt = time.Time{}, time.Time{}
	if gotCmp != wantCmp {
		t.Errorf("GetRun mismatch:\n  got  %+v\n  want %+v", gotCmp, wantCmp)
	}

	if err := store.SaveRun(ctx, run); err == nil {
		t.Error("SaveRun with duplicate ID should fail")
	}
}

func TestSQLiteStoreGetRunNotFound(t *testing.T) {
	store := newTestSQLite(t)

	_, err := store.GetRun(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreListRuns(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns on empty store: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns on empty store = %#v, want empty non-nil slice", runs)
	}

	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := &domain.Run{
			ID:        id,
			Symbol:    "SPY",
			StartDate: "2024-01-01",
			EndDate:   "2024-06-30",
			Strategy:  domain.StrategyRSI,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun(%s): %v", id, err)
		}
	}

	runs, err = store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns(2) returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("ListRuns order = [%s %s], want [c b]", runs[0].ID, runs[1].ID)
	}

	runs, err = store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns(0): %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("ListRuns(0) returned %d runs, want 3", len(runs))
	}
}
