package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scanbridge/internal/model"
	"scanbridge/internal/objectstore"
	"scanbridge/internal/pairing"
	"scanbridge/internal/token"
)

// PairingHandler exposes the pairing-session lifecycle. Creation requires a
// desktop JWT; query and completion are gated by possession of the
// unguessable token alone, because that is all the mobile side ever has.
type PairingHandler struct {
	Store    pairing.Store
	Resolver objectstore.Resolver
	Uploader objectstore.Uploader
}

type createPairingBody struct {
	DocType string `json:"docType"`
}

func (h *PairingHandler) Create(c *gin.Context) {
	var body createPairingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	tok, err := h.Store.Create(c.Request.Context(), body.DocType)
	if errors.Is(err, pairing.ErrInvalidDocType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document type"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create pairing session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tok})
}

func (h *PairingHandler) Query(c *gin.Context) {
	sess, err := h.Store.Get(c.Request.Context(), c.Param("token"))
	if errors.Is(err, token.ErrInvalidToken) || errors.Is(err, pairing.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not query pairing session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     sess.Status,
		"docType":    sess.DocType,
		"resultId":   sess.ResultID,
		"objectKeys": sess.ObjectKeys,
		"imageUrls":  h.imageURLs(sess.ImageURLs, sess.ObjectKeys),
	})
}

type completePairingBody struct {
	DocType    string   `json:"docType"`
	ResultID   int64    `json:"resultId"`
	ObjectKeys []string `json:"objectKeys"`
	ImageURLs  []string `json:"imageUrls"`
}

func (h *PairingHandler) Complete(c *gin.Context) {
	var body completePairingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if _, ok := model.DocTypeByName(body.DocType); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document type"})
		return
	}

	err := h.Store.Complete(c.Request.Context(), c.Param("token"), pairing.Completion{
		DocType:    body.DocType,
		ResultID:   body.ResultID,
		ObjectKeys: body.ObjectKeys,
		ImageURLs:  h.imageURLs(body.ImageURLs, body.ObjectKeys),
	})
	switch {
	case errors.Is(err, token.ErrInvalidToken), errors.Is(err, pairing.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid"})
	case errors.Is(err, pairing.ErrAlreadyCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "Pairing session already completed"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not complete pairing session"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// PresignUpload hands the mobile client a presigned PUT target under the
// session's document-type prefix.
func (h *PairingHandler) PresignUpload(c *gin.Context) {
	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Object store unavailable"})
		return
	}

	sess, err := h.Store.Get(c.Request.Context(), c.Param("token"))
	if errors.Is(err, token.ErrInvalidToken) || errors.Is(err, pairing.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not query pairing session"})
		return
	}
	if sess.Status != model.StatusWaiting {
		c.JSON(http.StatusConflict, gin.H{"error": "Pairing session already completed"})
		return
	}

	key, url, err := h.Uploader.PresignPut(c.Request.Context(), sess.DocType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not presign upload"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "url": url})
}

// imageURLs prefers the explicitly stored URLs and falls back to deriving
// them from object keys, so callers always get an ordered, non-null list.
func (h *PairingHandler) imageURLs(urls, keys []string) []string {
	if len(urls) > 0 {
		return urls
	}
	if h.Resolver == nil || len(keys) == 0 {
		return []string{}
	}
	derived := make([]string, 0, len(keys))
	for _, key := range keys {
		derived = append(derived, h.Resolver.PublicURL(key))
	}
	return derived
}
