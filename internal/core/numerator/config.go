// Package numerator defines human-readable numbering for sales and transfers.
package numerator

// Document prefixes.
const (
	PrefixSale     = "SL"
	PrefixTransfer = "TR"
)

// Strategy selects how a Generator reserves numbers.
type Strategy int

const (
	// StrategyStrict increments the sequence row inside the caller's
	// transaction, so a rolled-back sale leaves no gap.
	StrategyStrict Strategy = iota

	// StrategyCached hands out numbers from a range reserved in memory.
	// Gaps appear after restarts.
	StrategyCached
)

// Options tune a single GetNextNumber call. nil means DefaultOptions.
type Options struct {
	Strategy Strategy
	// RangeSize is the block reserved per round trip by StrategyCached (default 50).
	RangeSize int64
}

func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Period is how often a counter restarts from 1.
type Period string

const (
	PeriodYear  Period = "year"
	PeriodMonth Period = "month"
	PeriodNever Period = "never"
)

// Config describes the shape of a number: PREFIX[-YYYY]-NNNNN.
type Config struct {
	Prefix      string
	IncludeYear bool
	PadWidth    int
	ResetPeriod Period
}

// DefaultConfig yields numbers like SL-2026-00001 restarting every year.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: PeriodYear,
	}
}
