package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/cashflow_recurring/config"
	"bitbucket.org/mmdatafocus/cashflow_recurring/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MoneyAccount struct {
	ID           int              `gorm:"primary_key" json:"id"`
	BusinessId   string           `gorm:"index;not null" json:"business_id"`
	AccountType  MoneyAccountType `gorm:"type:enum('cash','bank','card');default:'cash';size:12;not null" json:"account_type" binding:"required"`
	AccountName  string           `gorm:"index;size:100;not null" json:"account_name" binding:"required"`
	CurrencyCode string           `gorm:"size:3;not null" json:"currency_code" binding:"required"`
	BankName     string           `gorm:"size:100" json:"bank_name"`
	// CurrentBalance moves only when transactions post; the scheduled
	// aggregates below are expectations, maintained by recurring-transaction
	// bookkeeping.
	CurrentBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_balance"`
	// ScheduledInflows/ScheduledOutflows must always equal the sum of
	// abs(amount) over the business's active recurring transactions with
	// affect_available_balance set, per sign. Mutated only through
	// AdjustScheduledFlows (atomic SQL deltas), never read-modify-write.
	ScheduledInflows  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"scheduled_inflows"`
	ScheduledOutflows decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"scheduled_outflows"`
	Description       string          `gorm:"type:text" json:"description"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMoneyAccount struct {
	AccountType    MoneyAccountType `json:"account_type" binding:"required"`
	AccountName    string           `json:"account_name" binding:"required"`
	CurrencyCode   string           `json:"currency_code" binding:"required"`
	BankName       string           `json:"bank_name"`
	CurrentBalance decimal.Decimal  `json:"current_balance"`
	Description    string           `json:"description"`
}

type MoneyAccountsEdge Edge[MoneyAccount]
type MoneyAccountsConnection struct {
	PageInfo *PageInfo            `json:"pageInfo"`
	Edges    []*MoneyAccountsEdge `json:"edges"`
}

func (ma MoneyAccount) GetCursor() string {
	return ma.CreatedAt.String()
}

func (ma MoneyAccount) GetId() int {
	return ma.ID
}

// validate input for both create & update. (id = 0 for create)
func (input *NewMoneyAccount) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[MoneyAccount](ctx, businessId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[MoneyAccount](ctx, businessId, "account_name", input.AccountName, id); err != nil {
		return err
	}
	if _, err := ParseMoneyAccountType(string(input.AccountType)); err != nil {
		return err
	}
	return nil
}

func CreateMoneyAccount(ctx context.Context, input *NewMoneyAccount) (*MoneyAccount, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	account := MoneyAccount{
		BusinessId:     businessId,
		AccountType:    input.AccountType,
		AccountName:    input.AccountName,
		CurrencyCode:   input.CurrencyCode,
		BankName:       input.BankName,
		CurrentBalance: input.CurrentBalance,
		Description:    input.Description,
		IsActive:       utils.NewTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func UpdateMoneyAccount(ctx context.Context, id int, input *NewMoneyAccount) (*MoneyAccount, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	account, err := utils.FetchModel[MoneyAccount](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&account).Updates(map[string]interface{}{
		"AccountType":  input.AccountType,
		"AccountName":  input.AccountName,
		"CurrencyCode": input.CurrencyCode,
		"BankName":     input.BankName,
		"Description":  input.Description,
	}).Error
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisItem[MoneyAccount](id)
	return account, nil
}

func DeleteMoneyAccount(ctx context.Context, id int) (*MoneyAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	account, err := utils.FetchModel[MoneyAccount](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[RecurringTransaction](ctx, businessId, "money_account_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("account has recurring transactions")
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(account).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisItem[MoneyAccount](id)
	return account, nil
}

func GetMoneyAccount(ctx context.Context, id int) (*MoneyAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// cache-aside: MoneyAccount:$id
	cached, err := utils.RetrieveRedis[MoneyAccount](id)
	if err == nil && cached != nil && cached.BusinessId == businessId {
		return cached, nil
	}

	account, err := utils.FetchModel[MoneyAccount](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	_ = utils.StoreRedis[MoneyAccount](account, id)
	return account, nil
}

func GetMoneyAccounts(ctx context.Context) ([]*MoneyAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[MoneyAccount](ctx, businessId)
}

// AdjustScheduledFlows applies signed deltas to an account's scheduled
// aggregates with a single atomic UPDATE. Concurrent recurring-transaction
// edits on the same account race here; pushing the arithmetic into SQL is
// what keeps the invariant under that race.
func AdjustScheduledFlows(tx *gorm.DB, ctx context.Context, accountId int, inflowDelta decimal.Decimal, outflowDelta decimal.Decimal) error {
	if inflowDelta.IsZero() && outflowDelta.IsZero() {
		return nil
	}
	err := tx.WithContext(ctx).Model(&MoneyAccount{}).
		Where("id = ?", accountId).
		Updates(map[string]interface{}{
			"scheduled_inflows":  gorm.Expr("scheduled_inflows + ?", inflowDelta),
			"scheduled_outflows": gorm.Expr("scheduled_outflows + ?", outflowDelta),
		}).Error
	if err != nil {
		return err
	}
	_ = utils.RemoveRedisItem[MoneyAccount](accountId)
	return nil
}

// AdjustCurrentBalance posts a signed movement to the live balance.
func AdjustCurrentBalance(tx *gorm.DB, ctx context.Context, accountId int, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	err := tx.WithContext(ctx).Model(&MoneyAccount{}).
		Where("id = ?", accountId).
		Updates(map[string]interface{}{
			"current_balance": gorm.Expr("current_balance + ?", delta),
		}).Error
	if err != nil {
		return err
	}
	_ = utils.RemoveRedisItem[MoneyAccount](accountId)
	return nil
}
