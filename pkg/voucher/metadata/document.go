package metadata

import (
	"strings"

	"github.com/gideon-vouchers/voucher-server/pkg/voucher"
)

const DefaultDescription = "No description available"

// Document is the off-chain JSON a voucher's URI points at.
type Document struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

func (d *Document) normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Symbol = strings.TrimSpace(d.Symbol)
	d.Description = strings.TrimSpace(d.Description)
	d.Image = strings.TrimSpace(d.Image)

	if len(d.Description) == 0 {
		d.Description = DefaultDescription
	}
}

// Apply overlays the off-chain document onto v. Empty document fields leave
// the on-chain values in place, and the image replaces the URI.
func Apply(v *voucher.Voucher, doc *Document) {
	if v == nil || doc == nil {
		return
	}

	if len(doc.Name) > 0 {
		v.Name = doc.Name
	}
	if len(doc.Symbol) > 0 {
		v.Symbol = doc.Symbol
	}
	v.Description = doc.Description
	if len(v.Description) == 0 {
		v.Description = DefaultDescription
	}
	if len(doc.Image) > 0 {
		v.URI = doc.Image
	}
}
