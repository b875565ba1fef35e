// recurring-materialize runs one materializer pass and exits: every business
// with a due recurring transaction gets its occurrences posted and its
// schedules advanced. Intended for Cloud Scheduler / one-off ops runs when
// the in-process cron is disabled.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//   REDIS_ADDRESS=... go run ./cmd/recurring-materialize [business_id]
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/cashflow_recurring/config"
	"bitbucket.org/mmdatafocus/cashflow_recurring/workflow"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	now := time.Now()
	if len(os.Args) > 1 {
		businessId := os.Args[1]
		result, err := workflow.MaterializeDueRecurring(ctx, businessId, now)
		if err != nil {
			fmt.Fprintf(os.Stderr, "materializer failed for %s: %v\n", businessId, err)
			os.Exit(1)
		}
		fmt.Printf("business %s: posted=%d skipped=%d expired=%d\n",
			businessId, result.Posted, result.Skipped, result.Expired)
		return
	}

	workflow.MaterializeAllBusinesses(ctx, now)
	fmt.Println("materializer pass complete")
}
