package builtins

import (
	"errors"
	"testing"
	"time"

	"backtester/internal/domain"
	"backtester/internal/strategy"
)

const capital = 100000.0

func series(closes ...float64) domain.PriceSeries {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make(domain.PriceSeries, len(closes))
	for i, c := range closes {
		out[i] = domain.PricePoint{Date: base.AddDate(0, 0, i).Format(domain.DateLayout), Close: c}
	}
	return out
}

func declining(n int) domain.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	return series(closes...)
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSMACrossName(t *testing.T) {
	if got := NewSMACross(2, 3).Name(); got != "ma" {
		t.Errorf("SMACross.Name() = %q, want %q", got, "ma")
	}
}

func TestSMACrossSignals(t *testing.T) {
	prices := series(10, 10, 10, 12, 12, 12)
	got := NewSMACross(2, 3).Signals(prices)
	// Short SMA: -, 10, 10, 11, 12, 12. Long SMA: -, -, 10, 10.67, 11.33, 12.
	want := []int{0, 0, 0, 1, 1, 0}
	if !equalInts(got, want) {
		t.Errorf("Signals = %v, want %v", got, want)
	}
}

func TestSMACrossBacktest_StepUp(t *testing.T) {
	prices := series(10, 10, 10, 12, 12, 12)
	res := strategy.Backtest(prices, NewSMACross(2, 3), capital)

	if len(res.Trades) != 1 {
		t.Fatalf("Trades = %v, want exactly one", res.Trades)
	}
	buy := res.Trades[0]
	if buy.Side != domain.SideBuy || buy.Date != prices[4].Date || buy.Price != 12 {
		t.Errorf("Trades[0] = %+v, want BUY at %s/12", buy, prices[4].Date)
	}
	// The step happened before the position was taken, so nothing was earned.
	for i, v := range res.EquityCurve {
		if v != capital {
			t.Errorf("EquityCurve[%d] = %v, want %v", i, v, capital)
		}
	}
}

func TestSMACrossBacktest_RisingAfterBuy(t *testing.T) {
	prices := series(10, 10, 10, 12, 13, 14)
	res := strategy.Backtest(prices, NewSMACross(2, 3), capital)

	if len(res.Trades) != 1 || res.Trades[0].Side != domain.SideBuy || res.Trades[0].Date != prices[4].Date {
		t.Fatalf("Trades = %v, want one BUY at %s", res.Trades, prices[4].Date)
	}
	for i := 0; i < 4; i++ {
		if res.EquityCurve[i] != capital {
			t.Errorf("EquityCurve[%d] = %v, want flat %v before the BUY", i, res.EquityCurve[i], capital)
		}
	}
	if res.EquityCurve[4] <= capital || res.EquityCurve[5] <= res.EquityCurve[4] {
		t.Errorf("equity should rise once long: %v", res.EquityCurve)
	}
	if res.FinalValue <= capital || res.TotalReturn <= 0 {
		t.Errorf("FinalValue = %v TotalReturn = %v, want gains", res.FinalValue, res.TotalReturn)
	}
}

func TestSMACrossShortSeriesIsFlat(t *testing.T) {
	prices := series(10, 11)
	got := NewSMACross(5, 20).Signals(prices)
	if !equalInts(got, []int{0, 0}) {
		t.Errorf("Signals = %v, want all zero when windows never fill", got)
	}
}

func TestRSIThresholdName(t *testing.T) {
	if got := NewRSIThreshold(14, 30, 70).Name(); got != "rsi" {
		t.Errorf("RSIThreshold.Name() = %q, want %q", got, "rsi")
	}
}

func TestRSIThresholdDefaults(t *testing.T) {
	s := NewRSIThreshold(0, 0, 0)
	if s.period != DefaultRSIPeriod || s.lower != DefaultRSILower || s.upper != DefaultRSIUpper {
		t.Errorf("defaults = (%d, %v, %v), want (14, 30, 70)", s.period, s.lower, s.upper)
	}
}

func TestRSIThresholdBacktest_Declining(t *testing.T) {
	prices := declining(20)
	strat := NewRSIThreshold(DefaultRSIPeriod, DefaultRSILower, DefaultRSIUpper)

	signals := strat.Signals(prices)
	for i := 0; i < 14; i++ {
		if signals[i] != 0 {
			t.Errorf("signal[%d] = %d, want 0 before RSI is defined", i, signals[i])
		}
	}
	if signals[14] != 1 {
		t.Errorf("signal[14] = %d, want 1 once RSI < 30", signals[14])
	}

	res := strategy.Backtest(prices, strat, capital)
	if len(res.Trades) != 1 {
		t.Fatalf("Trades = %v, want exactly one", res.Trades)
	}
	if got := res.Trades[0]; got.Side != domain.SideBuy || got.Date != prices[15].Date || got.Price != prices[15].Close {
		t.Errorf("Trades[0] = %+v, want BUY at %s/%v", got, prices[15].Date, prices[15].Close)
	}
}

func TestRSIThreshold_NoHysteresis(t *testing.T) {
	// 14 one-point declines push RSI to 0, one +5 day leaves it near 28,
	// a second +5 day lifts it to about 45: between the thresholds.
	closes := make([]float64, 0, 18)
	for i := 0; i < 15; i++ {
		closes = append(closes, 100-float64(i))
	}
	closes = append(closes, 91, 96, 97)
	prices := series(closes...)

	signals := NewRSIThreshold(14, 30, 70).Signals(prices)
	want := []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 0, 0}
	if !equalInts(signals, want) {
		t.Fatalf("Signals = %v, want %v", signals, want)
	}

	res := strategy.Backtest(prices, NewRSIThreshold(14, 30, 70), capital)
	if len(res.Trades) != 2 {
		t.Fatalf("Trades = %v, want BUY then SELL", res.Trades)
	}
	if res.Trades[0].Side != domain.SideBuy || res.Trades[0].Date != prices[15].Date {
		t.Errorf("Trades[0] = %+v, want BUY at %s", res.Trades[0], prices[15].Date)
	}
	if res.Trades[1].Side != domain.SideSell || res.Trades[1].Date != prices[17].Date {
		t.Errorf("Trades[1] = %+v, want SELL at %s", res.Trades[1], prices[17].Date)
	}
}

func TestRSIThreshold_RisingNeverSignals(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 50 + float64(i)
	}
	for i, s := range NewRSIThreshold(14, 30, 70).Signals(series(closes...)) {
		if s != 0 {
			t.Errorf("signal[%d] = %d, want 0 while RSI is undefined", i, s)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	names := r.List()
	if len(names) != 2 || names[0] != "ma" || names[1] != "rsi" {
		t.Errorf("List() = %v, want [ma rsi]", names)
	}

	s, err := r.New(domain.StrategyMovingAverage, strategy.Params{ShortWindow: 2, LongWindow: 3})
	if err != nil {
		t.Fatalf("New(ma): %v", err)
	}
	if s.Name() != "ma" {
		t.Errorf("New(ma).Name() = %q", s.Name())
	}

	_, err = r.New("bollinger", strategy.Params{})
	if !errors.Is(err, domain.ErrInvalidStrategy) {
		t.Errorf("New(bollinger) error = %v, want ErrInvalidStrategy", err)
	}
}
