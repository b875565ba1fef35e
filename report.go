package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/cashflow_recurring/config"
	"bitbucket.org/mmdatafocus/cashflow_recurring/models"
	"bitbucket.org/mmdatafocus/cashflow_recurring/utils"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// upcomingScheduleReportHandler exports the business's recurring schedule
// ordered by next occurrence as an xlsx download.
func upcomingScheduleReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		businessId, ok := utils.GetBusinessIdFromContext(ctx)
		if !ok || businessId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		days, ok := optionalIntQuery(c, "days", 90, 1, 730)
		if !ok {
			return
		}
		horizon := utils.TruncateToDate(time.Now()).AddDate(0, 0, days)

		db := config.GetDB()
		var records []*models.RecurringTransaction
		err := db.WithContext(ctx).Model(&models.RecurringTransaction{}).
			Where("business_id = ?", businessId).
			Where("next_scheduled_date <= ?", horizon).
			Order("next_scheduled_date ASC, id ASC").
			Find(&records).Error
		if err != nil {
			respondError(c, err)
			return
		}

		accounts, err := models.GetMoneyAccounts(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		accountNames := make(map[int]string, len(accounts))
		for _, a := range accounts {
			accountNames[a.ID] = a.AccountName
		}

		f := excelize.NewFile()
		if _, err := f.NewSheet("Sheet1"); err != nil {
			respondError(c, errors.New("failed to build report"))
			return
		}

		f.SetCellValue("Sheet1", "A1", "NextDate")
		f.SetCellValue("Sheet1", "B1", "Title")
		f.SetCellValue("Sheet1", "C1", "Account")
		f.SetCellValue("Sheet1", "D1", "Amount")
		f.SetCellValue("Sheet1", "E1", "Currency")
		f.SetCellValue("Sheet1", "F1", "Frequency")
		f.SetCellValue("Sheet1", "G1", "Interval")
		f.SetCellValue("Sheet1", "H1", "Executions")

		for i, rt := range records {
			row := fmt.Sprint(i + 2)
			f.SetCellValue("Sheet1", "A"+row, rt.NextScheduledDate.Format("2006-01-02"))
			f.SetCellValue("Sheet1", "B"+row, rt.Title)
			f.SetCellValue("Sheet1", "C"+row, accountNames[rt.MoneyAccountId])
			f.SetCellValue("Sheet1", "D"+row, rt.Amount.InexactFloat64())
			f.SetCellValue("Sheet1", "E"+row, rt.CurrencyCode)
			f.SetCellValue("Sheet1", "F"+row, string(rt.Frequency))
			f.SetCellValue("Sheet1", "G"+row, rt.RepeatInterval)
			f.SetCellValue("Sheet1", "H"+row, rt.ExecutionCount)
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=upcoming-schedule.xlsx")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "report", "upcomingScheduleReportHandler", "writing xlsx", nil, err)
		}
	}
}
