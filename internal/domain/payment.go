// Payment-event classification and product resolution.
//
// Providers disagree on field names and casing, so classification works on
// uppercased event/status/method strings against small keyword sets. Unknown
// combinations are ignored upstream, never rejected.
package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ProductUnknown is the label used when an offer code is not in the catalog.
const ProductUnknown = "UNKNOWN"

// Catalog maps provider offer codes to internal product labels.
type Catalog map[string]string

// DefaultCatalog returns the built-in offer-code table.
func DefaultCatalog() Catalog {
	return Catalog{
		// CS plans
		"5c1f6390-8999-4740-b16f-51380e1097e4": "CS",
		"0f393085-4960-4c71-9efe-faee8ba51d3f": "CS",
		"e2282b4c-878c-4bcd-becb-1977dfd6d2b8": "CS",
		// FAB single plan
		"5288799c-d8e3-48ce-a91d-587814acdee5": "FAB",
	}
}

// Resolve returns the product label for an offer code, or ProductUnknown.
func (c Catalog) Resolve(offerID string) string {
	if label, ok := c[strings.TrimSpace(offerID)]; ok {
		return label
	}
	return ProductUnknown
}

// IsApprovedEvent reports whether the uppercased event/status pair denotes a
// settled sale.
func IsApprovedEvent(ev, st string) bool {
	return strings.Contains(ev, "APPROVED") ||
		strings.Contains(ev, "PAID") ||
		st == "APPROVED" ||
		st == "PAID" ||
		st == "COMPLETED"
}

// IsPendingPixEvent reports whether the uppercased event/status/method triple
// denotes a generated-but-unpaid PIX charge.
func IsPendingPixEvent(ev, st, pm string) bool {
	hasPix := strings.Contains(pm, "PIX") || strings.Contains(ev, "PIX")
	pending := strings.Contains(st, "PEND") ||
		strings.Contains(st, "AWAIT") ||
		strings.Contains(st, "CREATED") ||
		strings.Contains(st, "WAITING")
	return hasPix && (pending || strings.Contains(ev, "PIX_GENERATED") || strings.Contains(ev, "PIX_CREATED"))
}

// FlexAmount decodes an amount that providers send either as a display
// string ("R$ 49,90") or as a bare JSON number.
type FlexAmount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *FlexAmount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = FlexAmount(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = FlexAmount(strconv.FormatFloat(f, 'f', 2, 64))
	return nil
}

// String returns the amount as a display string.
func (a FlexAmount) String() string { return string(a) }
