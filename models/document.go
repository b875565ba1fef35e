package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/cashflow_recurring/config"
	"bitbucket.org/mmdatafocus/cashflow_recurring/utils"
)

// Document is an uploaded receipt or bank statement attached to a recurring
// transaction (reference_type "RT") or a posted occurrence ("RO").
type Document struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id"`
	ReferenceType string    `gorm:"size:10;index:idx_document_ref,priority:1" json:"reference_type"`
	ReferenceID   int       `gorm:"index:idx_document_ref,priority:2" json:"reference_id"`
	FileName      string    `gorm:"size:255" json:"file_name"`
	ContentType   string    `gorm:"size:100" json:"content_type"`
	ObjectKey     string    `gorm:"size:512;not null" json:"object_key"`
	ThumbnailKey  string    `gorm:"size:512" json:"thumbnail_key"`
	SizeBytes     int64     `json:"size_bytes"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DocumentUrl resolves the stored object key to an access URL.
func (d Document) DocumentUrl() string {
	return utils.BuildObjectAccessURL(d.ObjectKey)
}

func (d Document) ThumbnailUrl() string {
	if d.ThumbnailKey == "" {
		return ""
	}
	return utils.BuildObjectAccessURL(d.ThumbnailKey)
}

func CreateDocument(ctx context.Context, doc *Document) (*Document, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	doc.BusinessId = businessId

	switch RecurringReferenceType(doc.ReferenceType) {
	case ReferenceTypeRecurringTransaction:
		if err := utils.ValidateResourceId[RecurringTransaction](ctx, businessId, doc.ReferenceID); err != nil {
			return nil, errors.New("recurring transaction not found")
		}
	case ReferenceTypePostedOccurrence:
		if err := utils.ValidateResourceId[MoneyTransaction](ctx, businessId, doc.ReferenceID); err != nil {
			return nil, errors.New("money transaction not found")
		}
	default:
		return nil, errors.New("invalid reference type")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func GetDocuments(ctx context.Context, referenceType string, referenceId int) ([]*Document, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	var docs []*Document
	err := db.WithContext(ctx).Model(&Document{}).
		Where("business_id = ? AND reference_type = ? AND reference_id = ?", businessId, referenceType, referenceId).
		Order("id ASC").Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func DeleteDocument(ctx context.Context, id int) (*Document, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	doc, err := utils.FetchModel[Document](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(doc).Error; err != nil {
		return nil, err
	}
	if err := utils.DeleteObjectFromGCS(ctx, doc.ObjectKey); err != nil {
		config.LogError(config.GetLogger(), "models", "DeleteDocument", "gcs delete", doc.ObjectKey, err)
	}
	if doc.ThumbnailKey != "" {
		if err := utils.DeleteObjectFromGCS(ctx, doc.ThumbnailKey); err != nil {
			config.LogError(config.GetLogger(), "models", "DeleteDocument", "gcs delete thumbnail", doc.ThumbnailKey, err)
		}
	}
	return doc, nil
}
