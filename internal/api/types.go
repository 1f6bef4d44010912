package api

import (
	"time"

	"github.com/dealmungchi/dealextractor/internal/deal"
	"github.com/dealmungchi/dealextractor/services/store"
)

// ErrorResponse is the failure variant of every API response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StoresResponse lists restaurants
type StoresResponse struct {
	Success bool          `json:"success"`
	Stores  []store.Store `json:"stores"`
}

// ExtractResponse carries one extracted record
type ExtractResponse struct {
	Success bool         `json:"success"`
	Data    *deal.Record `json:"data"`
}

// UploadImageRequest is a base64 image, optionally a data URL
type UploadImageRequest struct {
	ImageBase64 string `json:"imageBase64" validate:"required"`
}

// UploadImageResponse carries the stored asset id
type UploadImageResponse struct {
	Success bool   `json:"success"`
	AssetID string `json:"assetId"`
}

// UploadDealRequest wraps the deal to store
type UploadDealRequest struct {
	Deal store.DealUpload `json:"deal"`
}

// UploadDealResponse carries the stored deal id
type UploadDealResponse struct {
	Success bool   `json:"success"`
	DealID  string `json:"dealId"`
}
