package models

// Currency represents one entry of the exchange rate table. Rate is expressed
// as units of this currency per one USD; the rate table is kept fresh by the
// refresh-rates job, never implicitly by the converter.
type Currency struct {
	Base
	Code   string  `gorm:"size:3;uniqueIndex;not null" json:"code"`
	Name   string  `json:"name"`
	Rate   float64 `gorm:"not null" json:"rate"`
	Source string  `json:"source"`
}
