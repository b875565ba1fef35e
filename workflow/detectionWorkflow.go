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
)

// DetectionParams are handler-validated inputs to a detection run.
type DetectionParams struct {
	AccountId      int // 0 = all accounts of the business
	MinConfidence  float64
	MinOccurrences int
	LookbackDays   int
}

const detectionLockTTL = 2 * time.Minute

// RunDetection loads the lookback window of settled feed rows and runs the
// pattern detector over them. Nothing is persisted; the caller presents the
// proposals and accepting one goes through CreateRecurringTransaction.
func RunDetection(ctx context.Context, params DetectionParams) ([]models.DetectedProposal, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// Detection over a big window is expensive enough to dedupe: one run
	// per business at a time.
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("recurring:detect:%s", businessId)
	lock, err := locker.Obtain(ctx, lockKey, detectionLockTTL, nil)
	if err == redislock.ErrNotObtained {
		return nil, errors.New("detection already running for business")
	} else if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	now := time.Now()
	since := now.AddDate(0, 0, -params.LookbackDays)
	rows, err := models.ListMoneyTransactionsSince(ctx, params.AccountId, since)
	if err != nil {
		return nil, err
	}

	txns := make([]recurrence.Txn, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, recurrence.Txn{
			ID:           row.ID,
			Name:         row.Name,
			MerchantName: row.MerchantName,
			Date:         row.TransactionDate,
			Amount:       row.Amount,
		})
	}

	found := recurrence.Detect(txns, recurrence.DetectOptions{
		MinConfidence:  params.MinConfidence,
		MinOccurrences: params.MinOccurrences,
		LookbackDays:   params.LookbackDays,
		Now:            now,
		FuzzyMerchants: config.FuzzyMerchantGrouping(),
	})

	proposals := make([]models.DetectedProposal, 0, len(found))
	for _, p := range found {
		proposals = append(proposals, models.ToDetectedProposal(p))
	}
	return proposals, nil
}
