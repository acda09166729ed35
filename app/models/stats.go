package models

import "github.com/shopspring/decimal"

// DailyStats is one day of an aggregated series. Date is YYYY-MM-DD.
type DailyStats struct {
	Date   string          `json:"date"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}
