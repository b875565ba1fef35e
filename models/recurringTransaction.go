package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/cashflow_recurring/config"
	"bitbucket.org/mmdatafocus/cashflow_recurring/recurrence"
	"bitbucket.org/mmdatafocus/cashflow_recurring/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RecurringTransaction is a user-declared or detector-accepted repeating
// payment. Amount is signed: negative = outflow, positive = inflow.
type RecurringTransaction struct {
	ID              int                `gorm:"primary_key" json:"id"`
	BusinessId      string             `gorm:"index;not null" json:"business_id"`
	MoneyAccountId  int                `gorm:"index;not null" json:"money_account_id" binding:"required"`
	Title           string             `gorm:"size:255;not null" json:"title" binding:"required"`
	Amount          decimal.Decimal    `gorm:"type:decimal(20,4);not null" json:"amount"`
	CurrencyCode    string             `gorm:"size:3;not null" json:"currency_code"`
	Frequency       RecurringFrequency `gorm:"type:enum('WEEKLY','BIWEEKLY','MONTHLY','SEMI_MONTHLY','ANNUALLY','IRREGULAR');not null" json:"frequency" binding:"required"`
	RepeatInterval  int                `gorm:"not null;default:1" json:"repeat_interval"`
	StartDate       time.Time          `gorm:"not null" json:"start_date" binding:"required"`
	EndDate         *time.Time         `json:"end_date"`
	// Calendar anchors, all optional. WeekOfMonth -1 means "last week".
	DayOfMonth  *int `json:"day_of_month"`
	DayOfWeek   *int `json:"day_of_week"`
	WeekOfMonth *int `json:"week_of_month"`
	MonthOfYear *int `json:"month_of_year"`
	// NextScheduledDate is derived; recomputed on create and on any edit
	// that touches the schedule.
	NextScheduledDate     time.Time       `gorm:"index;not null" json:"next_scheduled_date"`
	InitialAccountBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"initial_account_balance"`
	ExecutionCount        int             `gorm:"not null;default:0" json:"execution_count"`
	TotalExecutions       *int            `json:"total_executions"`
	IsVariable            *bool           `gorm:"not null;default:false" json:"is_variable"`
	IsAutomated           *bool           `gorm:"not null;default:false" json:"is_automated"`
	RequiresApproval      *bool           `gorm:"not null;default:false" json:"requires_approval"`
	// AffectAvailableBalance ties this record into the owning account's
	// scheduled-flow aggregates; see scheduledFlowDeltas.
	AffectAvailableBalance *bool     `gorm:"not null;default:false" json:"affect_available_balance"`
	Notes                  string    `gorm:"type:text" json:"notes"`
	Tags                   string    `gorm:"size:500" json:"tags"` // comma separated
	TargetAccountId        *int      `gorm:"index" json:"target_account_id"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRecurringTransaction struct {
	MoneyAccountId         int                `json:"money_account_id" binding:"required"`
	Title                  string             `json:"title" binding:"required"`
	Amount                 decimal.Decimal    `json:"amount"`
	CurrencyCode           string             `json:"currency_code"`
	Frequency              RecurringFrequency `json:"frequency" binding:"required"`
	RepeatInterval         int                `json:"repeat_interval"`
	StartDate              time.Time          `json:"start_date" binding:"required"`
	EndDate                *time.Time         `json:"end_date"`
	DayOfMonth             *int               `json:"day_of_month"`
	DayOfWeek              *int               `json:"day_of_week"`
	WeekOfMonth            *int               `json:"week_of_month"`
	MonthOfYear            *int               `json:"month_of_year"`
	TotalExecutions        *int               `json:"total_executions"`
	IsVariable             *bool              `json:"is_variable"`
	IsAutomated            *bool              `json:"is_automated"`
	RequiresApproval       *bool              `json:"requires_approval"`
	AffectAvailableBalance *bool              `json:"affect_available_balance"`
	Notes                  string             `json:"notes"`
	Tags                   string             `json:"tags"`
	TargetAccountId        *int               `json:"target_account_id"`
}

// RecurringTransactionChanges is the partial-update input. Nil = leave
// unchanged. Only recognized fields can trigger schedule re-derivation or
// scheduled-flow bookkeeping; there is deliberately no map form.
type RecurringTransactionChanges struct {
	Title                  *string             `json:"title"`
	Amount                 *decimal.Decimal    `json:"amount"`
	CurrencyCode           *string             `json:"currency_code"`
	Frequency              *RecurringFrequency `json:"frequency"`
	RepeatInterval         *int                `json:"repeat_interval"`
	StartDate              *time.Time          `json:"start_date"`
	EndDate                *time.Time          `json:"end_date"`
	DayOfMonth             *int                `json:"day_of_month"`
	DayOfWeek              *int                `json:"day_of_week"`
	WeekOfMonth            *int                `json:"week_of_month"`
	MonthOfYear            *int                `json:"month_of_year"`
	TotalExecutions        *int                `json:"total_executions"`
	IsVariable             *bool               `json:"is_variable"`
	IsAutomated            *bool               `json:"is_automated"`
	RequiresApproval       *bool               `json:"requires_approval"`
	AffectAvailableBalance *bool               `json:"affect_available_balance"`
	Notes                  *string             `json:"notes"`
	Tags                   *string             `json:"tags"`
	TargetAccountId        *int                `json:"target_account_id"`
}

type RecurringTransactionsEdge Edge[RecurringTransaction]
type RecurringTransactionsConnection struct {
	PageInfo *PageInfo                    `json:"pageInfo"`
	Edges    []*RecurringTransactionsEdge `json:"edges"`
}

func (rt RecurringTransaction) GetCursor() string {
	return rt.NextScheduledDate.String()
}

func (rt RecurringTransaction) GetId() int {
	return rt.ID
}

// contribution of one record to (scheduledInflows, scheduledOutflows).
func scheduledFlowContribution(amount decimal.Decimal, hasFlag bool) (decimal.Decimal, decimal.Decimal) {
	zero := decimal.Zero
	if !hasFlag {
		return zero, zero
	}
	if amount.IsNegative() {
		return zero, amount.Abs()
	}
	return amount, zero
}

// scheduledFlowDeltas returns the signed adjustments to apply to the owning
// account's scheduled aggregates when a record's amount or flag moves from
// (oldAmount, hadFlag) to (newAmount, hasFlag). Create passes hadFlag=false
// with a zero old amount; delete passes hasFlag=false with a zero new amount.
// Sign transitions fall out of the subtraction: an outflow turned inflow
// yields a negative outflow delta and a positive inflow delta in one step.
func scheduledFlowDeltas(oldAmount, newAmount decimal.Decimal, hadFlag, hasFlag bool) (inflowDelta, outflowDelta decimal.Decimal) {
	oldIn, oldOut := scheduledFlowContribution(oldAmount, hadFlag)
	newIn, newOut := scheduledFlowContribution(newAmount, hasFlag)
	return newIn.Sub(oldIn), newOut.Sub(oldOut)
}

func validateAnchors(dayOfMonth, dayOfWeek, weekOfMonth, monthOfYear *int) error {
	if dayOfMonth != nil && (*dayOfMonth < 1 || *dayOfMonth > 31) {
		return errors.New("day_of_month must be between 1 and 31")
	}
	if dayOfWeek != nil && (*dayOfWeek < 0 || *dayOfWeek > 6) {
		return errors.New("day_of_week must be between 0 and 6")
	}
	if weekOfMonth != nil && (*weekOfMonth < -1 || *weekOfMonth == 0 || *weekOfMonth > 5) {
		return errors.New("week_of_month must be between 1 and 5, or -1 for last")
	}
	if monthOfYear != nil && (*monthOfYear < 1 || *monthOfYear > 12) {
		return errors.New("month_of_year must be between 1 and 12")
	}
	return nil
}

func CreateRecurringTransaction(ctx context.Context, input *NewRecurringTransaction) (*RecurringTransaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if _, err := ParseRecurringFrequency(string(input.Frequency)); err != nil {
		return nil, err
	}
	if err := validateAnchors(input.DayOfMonth, input.DayOfWeek, input.WeekOfMonth, input.MonthOfYear); err != nil {
		return nil, err
	}
	account, err := utils.FetchModel[MoneyAccount](ctx, businessId, input.MoneyAccountId)
	if err != nil {
		return nil, errors.New("money account not found")
	}
	if input.TargetAccountId != nil {
		if err := utils.ValidateResourceId[MoneyAccount](ctx, businessId, *input.TargetAccountId); err != nil {
			return nil, errors.New("target account not found")
		}
	}

	interval := input.RepeatInterval
	if interval < 1 {
		interval = 1
	}

	startDate := utils.TruncateToDate(input.StartDate)
	today := utils.TruncateToDate(time.Now())
	nextDate := recurrence.NextOccurrence(startDate, input.Frequency.Engine(), interval, today)

	record := RecurringTransaction{
		BusinessId:             businessId,
		MoneyAccountId:         input.MoneyAccountId,
		Title:                  input.Title,
		Amount:                 input.Amount,
		CurrencyCode:           input.CurrencyCode,
		Frequency:              input.Frequency,
		RepeatInterval:         interval,
		StartDate:              startDate,
		EndDate:                input.EndDate,
		DayOfMonth:             input.DayOfMonth,
		DayOfWeek:              input.DayOfWeek,
		WeekOfMonth:            input.WeekOfMonth,
		MonthOfYear:            input.MonthOfYear,
		NextScheduledDate:      nextDate,
		InitialAccountBalance:  account.CurrentBalance,
		TotalExecutions:        input.TotalExecutions,
		IsVariable:             boolOrFalse(input.IsVariable),
		IsAutomated:            boolOrFalse(input.IsAutomated),
		RequiresApproval:       boolOrFalse(input.RequiresApproval),
		AffectAvailableBalance: boolOrFalse(input.AffectAvailableBalance),
		Notes:                  input.Notes,
		Tags:                   input.Tags,
		TargetAccountId:        input.TargetAccountId,
	}

	db := config.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
			return err
		}
		inDelta, outDelta := scheduledFlowDeltas(
			decimal.Zero, record.Amount, false, *record.AffectAvailableBalance)
		if err := AdjustScheduledFlows(tx, ctx, record.MoneyAccountId, inDelta, outDelta); err != nil {
			return err
		}
		return PublishRecurringEvent(ctx, tx, businessId, time.Now(), record.ID,
			ReferenceTypeRecurringTransaction, &record, nil, PubSubMessageActionCreate)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func UpdateRecurringTransaction(ctx context.Context, id int, changes *RecurringTransactionChanges) (*RecurringTransaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	record, err := utils.FetchModel[RecurringTransaction](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	oldRecord := *record

	if changes.Frequency != nil {
		if _, err := ParseRecurringFrequency(string(*changes.Frequency)); err != nil {
			return nil, err
		}
	}
	if err := validateAnchors(changes.DayOfMonth, changes.DayOfWeek, changes.WeekOfMonth, changes.MonthOfYear); err != nil {
		return nil, err
	}
	if changes.TargetAccountId != nil {
		if err := utils.ValidateResourceId[MoneyAccount](ctx, businessId, *changes.TargetAccountId); err != nil {
			return nil, errors.New("target account not found")
		}
	}

	scheduleChanged := false
	if changes.Title != nil {
		record.Title = *changes.Title
	}
	if changes.Amount != nil {
		record.Amount = *changes.Amount
	}
	if changes.CurrencyCode != nil {
		record.CurrencyCode = *changes.CurrencyCode
	}
	if changes.Frequency != nil {
		record.Frequency = *changes.Frequency
		scheduleChanged = true
	}
	if changes.RepeatInterval != nil {
		interval := *changes.RepeatInterval
		if interval < 1 {
			interval = 1
		}
		record.RepeatInterval = interval
		scheduleChanged = true
	}
	if changes.StartDate != nil {
		record.StartDate = utils.TruncateToDate(*changes.StartDate)
		scheduleChanged = true
	}
	if changes.EndDate != nil {
		record.EndDate = changes.EndDate
	}
	if changes.DayOfMonth != nil {
		record.DayOfMonth = changes.DayOfMonth
		scheduleChanged = true
	}
	if changes.DayOfWeek != nil {
		record.DayOfWeek = changes.DayOfWeek
		scheduleChanged = true
	}
	if changes.WeekOfMonth != nil {
		record.WeekOfMonth = changes.WeekOfMonth
		scheduleChanged = true
	}
	if changes.MonthOfYear != nil {
		record.MonthOfYear = changes.MonthOfYear
		scheduleChanged = true
	}
	if changes.TotalExecutions != nil {
		record.TotalExecutions = changes.TotalExecutions
	}
	if changes.IsVariable != nil {
		record.IsVariable = changes.IsVariable
	}
	if changes.IsAutomated != nil {
		record.IsAutomated = changes.IsAutomated
	}
	if changes.RequiresApproval != nil {
		record.RequiresApproval = changes.RequiresApproval
	}
	if changes.AffectAvailableBalance != nil {
		record.AffectAvailableBalance = changes.AffectAvailableBalance
	}
	if changes.Notes != nil {
		record.Notes = *changes.Notes
	}
	if changes.Tags != nil {
		record.Tags = *changes.Tags
	}
	if changes.TargetAccountId != nil {
		record.TargetAccountId = changes.TargetAccountId
	}

	if scheduleChanged {
		today := utils.TruncateToDate(time.Now())
		record.NextScheduledDate = recurrence.NextOccurrence(
			record.StartDate, record.Frequency.Engine(), record.RepeatInterval, today)
	}

	db := config.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Save(record).Error; err != nil {
			return err
		}
		inDelta, outDelta := scheduledFlowDeltas(
			oldRecord.Amount, record.Amount,
			*oldRecord.AffectAvailableBalance, *record.AffectAvailableBalance)
		if err := AdjustScheduledFlows(tx, ctx, record.MoneyAccountId, inDelta, outDelta); err != nil {
			return err
		}
		return PublishRecurringEvent(ctx, tx, businessId, time.Now(), record.ID,
			ReferenceTypeRecurringTransaction, record, &oldRecord, PubSubMessageActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func DeleteRecurringTransaction(ctx context.Context, id int) (*RecurringTransaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	record, err := utils.FetchModel[RecurringTransaction](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Delete(record).Error; err != nil {
			return err
		}
		inDelta, outDelta := scheduledFlowDeltas(
			record.Amount, decimal.Zero, *record.AffectAvailableBalance, false)
		if err := AdjustScheduledFlows(tx, ctx, record.MoneyAccountId, inDelta, outDelta); err != nil {
			return err
		}
		return PublishRecurringEvent(ctx, tx, businessId, time.Now(), record.ID,
			ReferenceTypeRecurringTransaction, nil, record, PubSubMessageActionDelete)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func GetRecurringTransaction(ctx context.Context, id int) (*RecurringTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[RecurringTransaction](ctx, businessId, id)
}

func PaginateRecurringTransactions(ctx context.Context, accountId int, limit int, after *string) (*RecurringTransactionsConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&RecurringTransaction{}).
		Where("business_id = ?", businessId)
	if accountId > 0 {
		dbCtx = dbCtx.Where("money_account_id = ?", accountId)
	}

	pageEdges, pageInfo, err := FetchPageCompositeCursor[RecurringTransaction](dbCtx, limit, after, "next_scheduled_date", ">")
	if err != nil {
		return nil, err
	}

	edges := make([]*RecurringTransactionsEdge, 0, len(pageEdges))
	for i := range pageEdges {
		edge := RecurringTransactionsEdge(pageEdges[i])
		edges = append(edges, &edge)
	}
	return &RecurringTransactionsConnection{PageInfo: pageInfo, Edges: edges}, nil
}

// ListDueRecurringTransactions loads records whose next occurrence falls on
// or before asOf, for the materializer. Caller holds the per-business lock.
func ListDueRecurringTransactions(ctx context.Context, businessId string, asOf time.Time) ([]*RecurringTransaction, error) {
	db := config.GetDB()
	var records []*RecurringTransaction
	err := db.WithContext(ctx).Model(&RecurringTransaction{}).
		Where("business_id = ?", businessId).
		Where("next_scheduled_date <= ?", utils.TruncateToDate(asOf)).
		Order("next_scheduled_date ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func boolOrFalse(b *bool) *bool {
	if b == nil {
		return utils.NewFalse()
	}
	return b
}
