package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/cashflow_recurring/models"
	"bitbucket.org/mmdatafocus/cashflow_recurring/utils"
	"bitbucket.org/mmdatafocus/cashflow_recurring/workflow"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError maps model-layer failures onto HTTP statuses. Ownership
// mismatches surface as not-found so ids can't be probed across tenants.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, utils.ErrorRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

type signinRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func signupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if len(input.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
			return
		}
		user, err := models.Signup(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": user})
	}
}

func signinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": info})
	}
}

func createMoneyAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMoneyAccount
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		account, err := models.CreateMoneyAccount(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": account})
	}
}

func listMoneyAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := models.GetMoneyAccounts(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": accounts})
	}
}

func getMoneyAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		account, err := models.GetMoneyAccount(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": account})
	}
}

func updateMoneyAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewMoneyAccount
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		account, err := models.UpdateMoneyAccount(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": account})
	}
}

func deleteMoneyAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		account, err := models.DeleteMoneyAccount(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": account})
	}
}

func createMoneyTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMoneyTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		txn, err := models.CreateMoneyTransaction(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": txn})
	}
}

func listMoneyTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountId, ok := optionalIntQuery(c, "account_id", 0, 0, 1<<31-1)
		if !ok {
			return
		}
		limit, ok := optionalIntQuery(c, "limit", 50, 1, 200)
		if !ok {
			return
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}
		conn, err := models.PaginateMoneyTransactions(c.Request.Context(), accountId, limit, after)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": conn})
	}
}

func deleteMoneyTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		txn, err := models.DeleteMoneyTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": txn})
	}
}

func createRecurringTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewRecurringTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		record, err := models.CreateRecurringTransaction(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": record})
	}
}

func listRecurringTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountId, ok := optionalIntQuery(c, "account_id", 0, 0, 1<<31-1)
		if !ok {
			return
		}
		limit, ok := optionalIntQuery(c, "limit", 50, 1, 200)
		if !ok {
			return
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}
		conn, err := models.PaginateRecurringTransactions(c.Request.Context(), accountId, limit, after)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": conn})
	}
}

func getRecurringTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		record, err := models.GetRecurringTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": record})
	}
}

func updateRecurringTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var changes models.RecurringTransactionChanges
		if err := c.ShouldBindJSON(&changes); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		record, err := models.UpdateRecurringTransaction(c.Request.Context(), id, &changes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": record})
	}
}

func deleteRecurringTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		record, err := models.DeleteRecurringTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": record})
	}
}

// runRecurringTransactionHandler force-runs the materializer for the
// caller's business (ops convenience; the cron does this on schedule).
func runRecurringTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := utils.GetBusinessIdFromContext(c.Request.Context())
		if !ok || businessId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "recurring.materialize")
		defer span.End()
		result, err := workflow.MaterializeDueRecurring(ctx, businessId, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

// Detection input validation happens here; the engine assumes typed,
// in-range values.
func detectRecurringTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountId, ok := optionalIntQuery(c, "account_id", 0, 0, 1<<31-1)
		if !ok {
			return
		}
		minConfidence, ok := optionalFloatQuery(c, "min_confidence", 0.7, 0, 1)
		if !ok {
			return
		}
		// Two occurrences give a single interval sample and therefore a
		// degenerate confidence of 1; require three by default.
		minOccurrences, ok := optionalIntQuery(c, "min_occurrences", 3, 2, 100)
		if !ok {
			return
		}
		lookbackDays, ok := optionalIntQuery(c, "lookback_days", 365, 7, 1095)
		if !ok {
			return
		}

		proposals, err := workflow.RunDetection(c.Request.Context(), workflow.DetectionParams{
			AccountId:      accountId,
			MinConfidence:  minConfidence,
			MinOccurrences: minOccurrences,
			LookbackDays:   lookbackDays,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": proposals})
	}
}

func optionalIntQuery(c *gin.Context, name string, def, lo, hi int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return n, true
}

func optionalFloatQuery(c *gin.Context, name string, def, lo, hi float64) (float64, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < lo || f > hi {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return f, true
}
