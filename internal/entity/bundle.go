package entity

// ExtractionBundle is everything the engine hands back for one document.
type ExtractionBundle struct {
	Header ExtractedBill   `json:"header"`
	Lines  []ExtractedLine `json:"lines"`
	Vendor *VendorIdentity `json:"vendor"`

	TextMethod string `json:"text_method,omitempty"`
	Pages      int    `json:"pages,omitempty"`
}
