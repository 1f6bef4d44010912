package api

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealmungchi/dealextractor/internal/deal"
	"github.com/dealmungchi/dealextractor/internal/pipeline"
	"github.com/dealmungchi/dealextractor/internal/telemetry"
	"github.com/dealmungchi/dealextractor/internal/validator"
	"github.com/dealmungchi/dealextractor/logger"
	"github.com/dealmungchi/dealextractor/pkg/errors"
	"github.com/dealmungchi/dealextractor/services/imaging"
	"github.com/dealmungchi/dealextractor/services/store"
)

// Extractor runs the extraction pipeline
type Extractor interface {
	Extract(ctx context.Context, req pipeline.ExtractRequest) (*deal.Record, error)
}

// ContentStore is the deal backend
type ContentStore interface {
	ListStores(ctx context.Context) ([]store.Store, error)
	UploadImage(ctx context.Context, jpeg []byte, filename string) (string, error)
	UploadDeal(ctx context.Context, upload store.DealUpload) (string, error)
}

// Handler serves the API routes
type Handler struct {
	extractor   Extractor
	store       ContentStore
	validator   *validator.Validator
	metrics     *telemetry.Metrics
	jpegQuality int
	now         func() time.Time
	log         *logger.Logger
}

// NewHandler creates a handler
func NewHandler(extractor Extractor, contentStore ContentStore, metrics *telemetry.Metrics, jpegQuality int) *Handler {
	return &Handler{
		extractor:   extractor,
		store:       contentStore,
		validator:   validator.New(),
		metrics:     metrics,
		jpegQuality: jpegQuality,
		now:         time.Now,
		log:         logger.ForServer(),
	}
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Timestamp: h.now().UTC()})
}

// FetchStores lists restaurants from the content store
func (h *Handler) FetchStores(c *gin.Context) {
	stores, err := h.store.ListStores(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, StoresResponse{Success: true, Stores: stores})
}

// ExtractFBData extracts a deal record from a post URL
func (h *Handler) ExtractFBData(c *gin.Context) {
	var req pipeline.ExtractRequest
	if !h.bind(c, &req) {
		return
	}

	record, err := h.extractor.Extract(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ExtractResponse{Success: true, Data: record})
}

// UploadImage re-encodes a base64 image as JPEG and stores it
func (h *Handler) UploadImage(c *gin.Context) {
	var req UploadImageRequest
	if !h.bind(c, &req) {
		return
	}

	raw, err := decodeBase64Image(req.ImageBase64)
	if err != nil {
		h.fail(c, errors.NewValidation("upload-image", "imageBase64 is not valid base64"))
		return
	}
	jpeg, err := imaging.ToJPEG(raw, h.jpegQuality)
	if err != nil {
		h.fail(c, errors.NewValidation("upload-image", err.Error()))
		return
	}

	filename := fmt.Sprintf("deal-%d.jpg", h.now().UnixMilli())
	assetID, err := h.store.UploadImage(c.Request.Context(), jpeg, filename)
	h.metrics.ObserveUpload("image", err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, UploadImageResponse{Success: true, AssetID: assetID})
}

// UploadDeal stores a parsed deal against a restaurant
func (h *Handler) UploadDeal(c *gin.Context) {
	var req UploadDealRequest
	if !h.bind(c, &req) {
		return
	}

	upload := req.Deal
	if upload.ValidFrom.IsZero() || upload.ValidTo.IsZero() {
		upload.ValidFrom, upload.ValidTo = deal.ComputeWindow(h.now())
	}

	dealID, err := h.store.UploadDeal(c.Request.Context(), upload)
	h.metrics.ObserveUpload("deal", err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, UploadDealResponse{Success: true, DealID: dealID})
}

// bind decodes and validates the JSON body, answering 4xx itself on failure
func (h *Handler) bind(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return false
		}
		h.fail(c, errors.NewValidation("request", "invalid JSON body: "+err.Error()))
		return false
	}
	if err := h.validator.ValidateStruct(out); err != nil {
		h.fail(c, errors.NewValidation("request", err.Error()))
		return false
	}
	return true
}

// fail writes the failure body; validation errors are the caller's fault
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	var extractErr *errors.ExtractError
	if stderrors.As(err, &extractErr) && extractErr.Type == errors.ErrorTypeValidation {
		status = http.StatusBadRequest
		message = extractErr.Message
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}

// decodeBase64Image accepts plain or data-URL base64, padded or not
func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, stderrors.New("empty image")
	}
	return data, nil
}
