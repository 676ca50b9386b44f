// Package qrcode renders vendor stall cards as QR codes.
package qrcode

import (
	"encoding/json"
	"fmt"

	"mandi/internal/domain/service"

	"github.com/skip2/go-qrcode"
)

type stallCardService struct {
	size                 int
	errorCorrectionLevel qrcode.RecoveryLevel
}

// StallCardData is the payload encoded in a stall card.
type StallCardData struct {
	VendorID string `json:"vendor_id"`
	Type     string `json:"type"`
}

const stallCardType = "stall"

// NewStallCardService creates a new stall card service instance
func NewStallCardService(size int, errorCorrectionLevel string) service.StallCardService {
	// Set error correction level
	var level qrcode.RecoveryLevel
	switch errorCorrectionLevel {
	case "L":
		level = qrcode.Low
	case "M":
		level = qrcode.Medium
	case "Q":
		level = qrcode.High
	case "H":
		level = qrcode.Highest
	default:
		level = qrcode.Medium
	}

	return &stallCardService{
		size:                 size,
		errorCorrectionLevel: level,
	}
}

// GenerateStallQR generates the PNG stall card for a vendor
func (s *stallCardService) GenerateStallQR(vendorID string) ([]byte, error) {
	if vendorID == "" {
		return nil, fmt.Errorf("vendor id is required")
	}

	data := StallCardData{
		VendorID: vendorID,
		Type:     stallCardType,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stall card data: %w", err)
	}

	qrCode, err := qrcode.New(string(jsonData), s.errorCorrectionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	pngBytes, err := qrCode.PNG(s.size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}

	return pngBytes, nil
}

// ParseStallQR parses scanned stall card data and returns the vendor id
func (s *stallCardService) ParseStallQR(qrData string) (string, error) {
	var data StallCardData
	if err := json.Unmarshal([]byte(qrData), &data); err != nil {
		return "", fmt.Errorf("failed to unmarshal stall card data: %w", err)
	}

	if data.Type != stallCardType {
		return "", fmt.Errorf("invalid stall card type: %s", data.Type)
	}

	if data.VendorID == "" {
		return "", fmt.Errorf("stall card has no vendor id")
	}

	return data.VendorID, nil
}
