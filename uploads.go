package main

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"bitbucket.org/mmdatafocus/cashflow_recurring/config"
	"bitbucket.org/mmdatafocus/cashflow_recurring/models"
	"bitbucket.org/mmdatafocus/cashflow_recurring/utils"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024
const thumbnailWidth = 320

var uploadMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// uploadDocumentHandler stores a receipt or statement against a recurring
// transaction: the file goes to GCS, images additionally get a thumbnail,
// and a Document row records the keys.
func uploadDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		ctx := c.Request.Context()

		businessId, ok := utils.GetBusinessIdFromContext(ctx)
		if !ok || businessId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		referenceId, ok := pathId(c)
		if !ok {
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		contentType := fileHeader.Header.Get("Content-Type")
		if !uploadMimeTypes[contentType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
			return
		}
		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		if ext == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file extension is required"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}

		objectKey := path.Join(businessId, "recurring", uuid.NewString()+ext)
		if err := utils.UploadBytesToGCS(ctx, objectKey, data, contentType); err != nil {
			config.LogError(logger, "uploads", "uploadDocumentHandler", "gcs upload", objectKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
			return
		}

		thumbnailKey := ""
		if imageMimeTypes[contentType] {
			thumbnailKey, err = makeThumbnail(c, objectKey, data)
			if err != nil {
				// The original upload stands; the document just has no
				// thumbnail.
				config.LogError(logger, "uploads", "uploadDocumentHandler", "thumbnail", objectKey, err)
				thumbnailKey = ""
			}
		}

		doc := models.Document{
			ReferenceType: string(models.ReferenceTypeRecurringTransaction),
			ReferenceID:   referenceId,
			FileName:      fileHeader.Filename,
			ContentType:   contentType,
			ObjectKey:     objectKey,
			ThumbnailKey:  thumbnailKey,
			SizeBytes:     fileHeader.Size,
		}
		saved, err := models.CreateDocument(ctx, &doc)
		if err != nil {
			// Roll the object back so failed requests don't leak storage.
			_ = utils.DeleteObjectFromGCS(ctx, objectKey)
			if thumbnailKey != "" {
				_ = utils.DeleteObjectFromGCS(ctx, thumbnailKey)
			}
			respondError(c, err)
			return
		}

		logger.WithFields(logrus.Fields{
			"business_id": businessId,
			"object_key":  objectKey,
			"size":        fileHeader.Size,
		}).Info("[upload.document]")

		c.JSON(http.StatusCreated, gin.H{"data": gin.H{
			"id":            saved.ID,
			"document_url":  saved.DocumentUrl(),
			"thumbnail_url": saved.ThumbnailUrl(),
		}})
	}
}

func makeThumbnail(c *gin.Context, objectKey string, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return "", err
	}

	ext := filepath.Ext(objectKey)
	thumbnailKey := strings.TrimSuffix(objectKey, ext) + "_thumb.jpg"
	if err := utils.UploadBytesToGCS(c.Request.Context(), thumbnailKey, buf.Bytes(), "image/jpeg"); err != nil {
		return "", err
	}
	return thumbnailKey, nil
}

func listDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		referenceId, ok := pathId(c)
		if !ok {
			return
		}
		docs, err := models.GetDocuments(c.Request.Context(),
			string(models.ReferenceTypeRecurringTransaction), referenceId)
		if err != nil {
			respondError(c, err)
			return
		}
		out := make([]gin.H, 0, len(docs))
		for _, d := range docs {
			out = append(out, gin.H{
				"id":            d.ID,
				"file_name":     d.FileName,
				"content_type":  d.ContentType,
				"size_bytes":    d.SizeBytes,
				"document_url":  d.DocumentUrl(),
				"thumbnail_url": d.ThumbnailUrl(),
				"created_at":    d.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"data": out})
	}
}

func deleteDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		doc, err := models.DeleteDocument(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": doc.ID}})
	}
}
