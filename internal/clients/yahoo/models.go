package yahoo

import "time"

// Quote is the subset of Yahoo Finance quote fields the valuation pipeline
// consumes. Optional fields are nil when the API omits them.
type Quote struct {
	Symbol        string
	Price         float64
	AsOf          time.Time
	Name          string
	Sector        string
	PERatio       *float64
	DividendYield *float64
}
