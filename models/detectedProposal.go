package models

import (
	"time"

	"bitbucket.org/mmdatafocus/cashflow_recurring/recurrence"
	"github.com/shopspring/decimal"
)

// DetectedProposal is the API shape for one detector result. Proposals are
// never persisted; accepting one goes through CreateRecurringTransaction.
type DetectedProposal struct {
	Merchant       string          `json:"merchant"`
	AvgAmount      decimal.Decimal `json:"avg_amount"`
	Frequency      string          `json:"frequency"`
	RepeatInterval int             `json:"repeat_interval"`
	DayOfMonth     *int            `json:"day_of_month"`
	DayOfWeek      *int            `json:"day_of_week"`
	Confidence     float64         `json:"confidence"`
	IsVariable     bool            `json:"is_variable"`
	TransactionIds []int           `json:"transaction_ids"`
	StartDate      time.Time       `json:"start_date"`
	NextDate       time.Time       `json:"next_date"`
}

func ToDetectedProposal(p recurrence.Proposal) DetectedProposal {
	return DetectedProposal{
		Merchant:       p.Merchant,
		AvgAmount:      p.AvgAmount,
		Frequency:      string(p.Frequency),
		RepeatInterval: p.Interval,
		DayOfMonth:     p.DayOfMonth,
		DayOfWeek:      p.DayOfWeek,
		Confidence:     p.Confidence,
		IsVariable:     p.IsVariable,
		TransactionIds: p.TransactionIDs,
		StartDate:      p.StartDate,
		NextDate:       p.NextDate,
	}
}
