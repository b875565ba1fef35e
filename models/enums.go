package models

import (
	"errors"

	"bitbucket.org/mmdatafocus/cashflow_recurring/recurrence"
)

type MoneyAccountType string

const (
	MoneyAccountTypeCash MoneyAccountType = "cash"
	MoneyAccountTypeBank MoneyAccountType = "bank"
	MoneyAccountTypeCard MoneyAccountType = "card"
)

func ParseMoneyAccountType(s string) (MoneyAccountType, error) {
	switch MoneyAccountType(s) {
	case MoneyAccountTypeCash, MoneyAccountTypeBank, MoneyAccountTypeCard:
		return MoneyAccountType(s), nil
	}
	return "", errors.New("invalid money account type")
}

// RecurringFrequency is the stored form of recurrence.Frequency.
type RecurringFrequency string

const (
	RecurringFrequencyWeekly      = RecurringFrequency(recurrence.FrequencyWeekly)
	RecurringFrequencyBiweekly    = RecurringFrequency(recurrence.FrequencyBiweekly)
	RecurringFrequencyMonthly     = RecurringFrequency(recurrence.FrequencyMonthly)
	RecurringFrequencySemiMonthly = RecurringFrequency(recurrence.FrequencySemiMonthly)
	RecurringFrequencyAnnually    = RecurringFrequency(recurrence.FrequencyAnnually)
	RecurringFrequencyIrregular   = RecurringFrequency(recurrence.FrequencyIrregular)
)

func ParseRecurringFrequency(s string) (RecurringFrequency, error) {
	switch RecurringFrequency(s) {
	case RecurringFrequencyWeekly, RecurringFrequencyBiweekly, RecurringFrequencyMonthly,
		RecurringFrequencySemiMonthly, RecurringFrequencyAnnually, RecurringFrequencyIrregular:
		return RecurringFrequency(s), nil
	}
	return "", errors.New("invalid recurring frequency")
}

func (f RecurringFrequency) Engine() recurrence.Frequency {
	return recurrence.ParseFrequency(string(f))
}

// PubSubMessageAction is the mutation kind carried on outbox events.
type PubSubMessageAction string

const (
	PubSubMessageActionCreate PubSubMessageAction = "C"
	PubSubMessageActionUpdate PubSubMessageAction = "U"
	PubSubMessageActionDelete PubSubMessageAction = "D"
)

// RecurringReferenceType identifies the entity an outbox event refers to.
type RecurringReferenceType string

const (
	ReferenceTypeRecurringTransaction RecurringReferenceType = "RT"
	ReferenceTypePostedOccurrence     RecurringReferenceType = "RO"
)
