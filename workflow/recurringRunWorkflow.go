package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/cashflow_recurring/config"
	"bitbucket.org/mmdatafocus/cashflow_recurring/models"
	"bitbucket.org/mmdatafocus/cashflow_recurring/recurrence"
	"bitbucket.org/mmdatafocus/cashflow_recurring/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaterializeResult summarizes one materializer run for a business.
type MaterializeResult struct {
	Posted  int
	Skipped int
	Expired int
}

const materializeLockTTL = 5 * time.Minute

// MaterializeDueRecurring posts money transactions for every recurring
// transaction of the business whose NextScheduledDate is on or before asOf,
// then advances the schedule. A redis lock keeps overlapping cron ticks and
// multiple instances from double-posting the same business; the MySQL
// advisory lock serializes against interactive posting on the same rows.
func MaterializeDueRecurring(ctx context.Context, businessId string, asOf time.Time) (*MaterializeResult, error) {
	logger := config.GetLogger()
	moduleName := "workflow"
	funcName := "MaterializeDueRecurring"

	locker := config.GetRedisLock()
	if locker == nil {
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("recurring:materialize:%s", businessId)
	lock, err := locker.Obtain(ctx, lockKey, materializeLockTTL, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, funcName, "Could not obtain materializer lock", businessId, err)
		return nil, errors.New("materializer already running for business")
	} else if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	due, err := models.ListDueRecurringTransactions(ctx, businessId, asOf)
	if err != nil {
		return nil, err
	}

	result := &MaterializeResult{}

	db := config.GetDB()
	for _, rt := range due {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
				return err
			}
			defer ReleaseBusinessPostingLock(tx, businessId)
			return materializeOne(ctx, tx, rt, result)
		})
		if err != nil {
			config.LogError(logger, moduleName, funcName, "posting occurrence", rt.ID, err)
			// Continue with the rest of the batch; the failed record stays
			// due and is retried on the next tick.
			continue
		}
	}

	logger.WithFields(logrus.Fields{
		"field":       "RecurringMaterializer",
		"business_id": businessId,
		"posted":      result.Posted,
		"skipped":     result.Skipped,
		"expired":     result.Expired,
	}).Info("materializer run complete")
	return result, nil
}

func materializeOne(ctx context.Context, tx *gorm.DB, rt *models.RecurringTransaction, result *MaterializeResult) error {

	// Past end date, or execution quota exhausted: the series is done.
	// Nothing is posted and the schedule stops advancing.
	expired := rt.EndDate != nil && rt.NextScheduledDate.After(utils.TruncateToDate(*rt.EndDate))
	if !expired && rt.TotalExecutions != nil && rt.ExecutionCount >= *rt.TotalExecutions {
		expired = true
	}
	if expired {
		result.Expired++
		return nil
	}

	// Approval-gated series surface as due in the UI instead of posting.
	if rt.RequiresApproval != nil && *rt.RequiresApproval {
		result.Skipped++
		return nil
	}

	occurrenceDate := rt.NextScheduledDate
	txn := models.MoneyTransaction{
		BusinessId:             rt.BusinessId,
		MoneyAccountId:         rt.MoneyAccountId,
		TransactionDate:        occurrenceDate,
		Name:                   rt.Title,
		MerchantName:           rt.Title,
		Amount:                 rt.Amount,
		CurrencyCode:           rt.CurrencyCode,
		IsPending:              utils.NewFalse(),
		RecurringTransactionId: &rt.ID,
	}
	if err := tx.WithContext(ctx).Create(&txn).Error; err != nil {
		return err
	}

	if err := models.AdjustCurrentBalance(tx, ctx, rt.MoneyAccountId, rt.Amount); err != nil {
		return err
	}

	// Advance the schedule by exactly one period. A record that was far
	// overdue stays due and is picked up again on the next tick, so missed
	// occurrences post one at a time instead of being skipped.
	next := recurrence.NextOccurrence(
		occurrenceDate, rt.Frequency.Engine(), rt.RepeatInterval, occurrenceDate.AddDate(0, 0, 1))

	if err := tx.WithContext(ctx).Model(&models.RecurringTransaction{}).
		Where("id = ?", rt.ID).
		Updates(map[string]interface{}{
			"execution_count":     gorm.Expr("execution_count + 1"),
			"next_scheduled_date": next,
		}).Error; err != nil {
		return err
	}
	rt.NextScheduledDate = next
	rt.ExecutionCount++

	if err := models.PublishRecurringEvent(ctx, tx, rt.BusinessId, time.Now(), txn.ID,
		models.ReferenceTypePostedOccurrence, &txn, nil, models.PubSubMessageActionCreate); err != nil {
		return err
	}

	result.Posted++
	return nil
}

// MaterializeAllBusinesses runs the materializer for every business that has
// at least one due recurring transaction. Invoked from the cron entry.
func MaterializeAllBusinesses(ctx context.Context, asOf time.Time) {
	logger := config.GetLogger()
	db := config.GetDB()

	var businessIds []string
	err := db.WithContext(ctx).Model(&models.RecurringTransaction{}).
		Distinct("business_id").
		Where("next_scheduled_date <= ?", utils.TruncateToDate(asOf)).
		Pluck("business_id", &businessIds).Error
	if err != nil {
		config.LogError(logger, "workflow", "MaterializeAllBusinesses", "listing due businesses", nil, err)
		return
	}

	for _, businessId := range businessIds {
		if _, err := MaterializeDueRecurring(ctx, businessId, asOf); err != nil {
			config.LogError(logger, "workflow", "MaterializeAllBusinesses", "business run", businessId, err)
		}
	}
}
