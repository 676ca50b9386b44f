package service

// StallCardService renders and parses vendor stall cards: printable QR codes a
// consumer scans at a market stall to pull up the vendor's live distance and
// catalog.
type StallCardService interface {
	// GenerateStallQR renders the PNG stall card for a vendor id.
	GenerateStallQR(vendorID string) ([]byte, error)

	// ParseStallQR decodes scanned stall card data back to the vendor id.
	ParseStallQR(data string) (string, error)
}
