package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/cashflow_recurring/config"
	"bitbucket.org/mmdatafocus/cashflow_recurring/utils"
	"github.com/shopspring/decimal"
)

// MoneyTransaction is one row of an account's transaction feed, either
// imported from a bank statement or posted by the recurring materializer.
// Amount is signed: negative = outflow, positive = inflow.
type MoneyTransaction struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	BusinessId             string          `gorm:"index;not null" json:"business_id"`
	MoneyAccountId         int             `gorm:"index;not null" json:"money_account_id" binding:"required"`
	TransactionDate        time.Time       `gorm:"index;not null" json:"transaction_date" binding:"required"`
	Name                   string          `gorm:"size:255;not null" json:"name" binding:"required"`
	MerchantName           string          `gorm:"size:255" json:"merchant_name"`
	Amount                 decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CurrencyCode           string          `gorm:"size:3;not null" json:"currency_code"`
	IsPending              *bool           `gorm:"not null;default:false" json:"is_pending"`
	ExternalId             string          `gorm:"size:128;index" json:"external_id"`
	RecurringTransactionId *int            `gorm:"index" json:"recurring_transaction_id"`
	Notes                  string          `gorm:"type:text" json:"notes"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMoneyTransaction struct {
	MoneyAccountId  int             `json:"money_account_id" binding:"required"`
	TransactionDate time.Time       `json:"transaction_date" binding:"required"`
	Name            string          `json:"name" binding:"required"`
	MerchantName    string          `json:"merchant_name"`
	Amount          decimal.Decimal `json:"amount"`
	CurrencyCode    string          `json:"currency_code"`
	IsPending       *bool           `json:"is_pending"`
	ExternalId      string          `json:"external_id"`
	Notes           string          `json:"notes"`
}

type MoneyTransactionsEdge Edge[MoneyTransaction]
type MoneyTransactionsConnection struct {
	PageInfo *PageInfo                `json:"pageInfo"`
	Edges    []*MoneyTransactionsEdge `json:"edges"`
}

func (mt MoneyTransaction) GetCursor() string {
	return mt.TransactionDate.String()
}

func (mt MoneyTransaction) GetId() int {
	return mt.ID
}

func CreateMoneyTransaction(ctx context.Context, input *NewMoneyTransaction) (*MoneyTransaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := utils.ValidateResourceId[MoneyAccount](ctx, businessId, input.MoneyAccountId); err != nil {
		return nil, errors.New("money account not found")
	}
	if input.Amount.IsZero() {
		return nil, errors.New("amount must not be zero")
	}

	isPending := input.IsPending
	if isPending == nil {
		isPending = utils.NewFalse()
	}

	txn := MoneyTransaction{
		BusinessId:      businessId,
		MoneyAccountId:  input.MoneyAccountId,
		TransactionDate: utils.TruncateToDate(input.TransactionDate),
		Name:            input.Name,
		MerchantName:    input.MerchantName,
		Amount:          input.Amount,
		CurrencyCode:    input.CurrencyCode,
		IsPending:       isPending,
		ExternalId:      input.ExternalId,
		Notes:           input.Notes,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func GetMoneyTransaction(ctx context.Context, id int) (*MoneyTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[MoneyTransaction](ctx, businessId, id)
}

func DeleteMoneyTransaction(ctx context.Context, id int) (*MoneyTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	txn, err := utils.FetchModel[MoneyTransaction](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// ListMoneyTransactionsSince loads settled feed rows on/after the cutoff,
// oldest first. accountId = 0 means all accounts of the business. Pending
// rows are excluded; the detector only sees settled history.
func ListMoneyTransactionsSince(ctx context.Context, accountId int, since time.Time) ([]*MoneyTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&MoneyTransaction{}).
		Where("business_id = ?", businessId).
		Where("transaction_date >= ?", utils.TruncateToDate(since)).
		Where("is_pending = ?", false)
	if accountId > 0 {
		query = query.Where("money_account_id = ?", accountId)
	}

	var txns []*MoneyTransaction
	if err := query.Order("transaction_date ASC, id ASC").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func PaginateMoneyTransactions(ctx context.Context, accountId int, limit int, after *string) (*MoneyTransactionsConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&MoneyTransaction{}).
		Where("business_id = ?", businessId)
	if accountId > 0 {
		dbCtx = dbCtx.Where("money_account_id = ?", accountId)
	}

	pageEdges, pageInfo, err := FetchPageCompositeCursor[MoneyTransaction](dbCtx, limit, after, "transaction_date", "<")
	if err != nil {
		return nil, err
	}

	edges := make([]*MoneyTransactionsEdge, 0, len(pageEdges))
	for i := range pageEdges {
		edge := MoneyTransactionsEdge(pageEdges[i])
		edges = append(edges, &edge)
	}
	return &MoneyTransactionsConnection{PageInfo: pageInfo, Edges: edges}, nil
}
