package model

import "time"

// Bar represents a single OHLCV record in the bar table.
type Bar struct {
	// Symbol is the contract code (e.g., "rb2401").
	Symbol string `gorm:"column:symbol;primaryKey" json:"symbol"`

	// Exchange is the market the contract trades on (e.g., "SHFE").
	Exchange string `gorm:"column:exchange;primaryKey" json:"exchange"`

	// Datetime marks the bar's canonical anchor in local wall-clock time.
	Datetime time.Time `gorm:"column:datetime;primaryKey" json:"datetime"`

	// Interval is the bar timeframe: "1m", "1h" or "d".
	Interval string `gorm:"column:interval;primaryKey" json:"interval"`

	// Volume is the traded volume over the bar period.
	Volume float64 `gorm:"column:volume" json:"volume"`

	// Turnover is the traded value over the bar period, zero when the
	// source lacks it.
	Turnover float64 `gorm:"column:turnover" json:"turnover"`

	// OpenInterest is the outstanding contract count, zero when unknown.
	OpenInterest float64 `gorm:"column:open_interest" json:"open_interest"`

	// OpenPrice is the first traded price of the period.
	OpenPrice float64 `gorm:"column:open_price" json:"open_price"`

	// HighPrice is the highest traded price of the period.
	HighPrice float64 `gorm:"column:high_price" json:"high_price"`

	// LowPrice is the lowest traded price of the period.
	LowPrice float64 `gorm:"column:low_price" json:"low_price"`

	// ClosePrice is the last traded price of the period.
	ClosePrice float64 `gorm:"column:close_price" json:"close_price"`
}

func (Bar) TableName() string {
	return "dbbardata"
}

// VtSymbol returns the SYMBOL.EXCHANGE composite identifier.
func (b *Bar) VtSymbol() string {
	return b.Symbol + "." + b.Exchange
}

// Overview is the per-(symbol, exchange, interval) summary row kept
// alongside the bar table for fast range queries. It must always reflect
// the true COUNT/MIN/MAX over the bar table for its key.
type Overview struct {
	Symbol   string    `gorm:"column:symbol;primaryKey" json:"symbol"`
	Exchange string    `gorm:"column:exchange;primaryKey" json:"exchange"`
	Interval string    `gorm:"column:interval;primaryKey" json:"interval"`
	Count    int64     `gorm:"column:count" json:"count"`
	Start    time.Time `gorm:"column:start" json:"start"`
	End      time.Time `gorm:"column:end" json:"end"`
}

func (Overview) TableName() string {
	return "dbbaroverview"
}
