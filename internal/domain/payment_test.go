package domain

import (
	"encoding/json"
	"testing"
)

func TestIsApprovedEvent(t *testing.T) {
	cases := []struct {
		ev, st string
		want   bool
	}{
		{"SALE_APPROVED", "", true},
		{"PAYMENT_APPROVED", "", true},
		{"ORDER_PAID", "", true},
		{"PURCHASE", "APPROVED", true},
		{"PURCHASE", "PAID", true},
		{"PURCHASE", "COMPLETED", true},
		{"PIX_GENERATED", "PENDING", false},
		{"", "", false},
	}
	for _, tc := range cases {
		if got := IsApprovedEvent(tc.ev, tc.st); got != tc.want {
			t.Errorf("IsApprovedEvent(%q, %q) = %v, want %v", tc.ev, tc.st, got, tc.want)
		}
	}
}

func TestIsPendingPixEvent(t *testing.T) {
	cases := []struct {
		ev, st, pm string
		want       bool
	}{
		{"PIX_GENERATED", "", "", true},
		{"PIX_CREATED", "", "PIX", true},
		{"PURCHASE", "PENDING", "PIX", true},
		{"PURCHASE", "AWAITING_PAYMENT", "PIX", true},
		{"PURCHASE", "CREATED", "PIX", true},
		{"PURCHASE", "WAITING", "PIX", true},
		// PIX method but settled status and no generation event
		{"PURCHASE", "APPROVED", "PIX", false},
		// pending status but no PIX anywhere
		{"PURCHASE", "PENDING", "CREDIT_CARD", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		if got := IsPendingPixEvent(tc.ev, tc.st, tc.pm); got != tc.want {
			t.Errorf("IsPendingPixEvent(%q, %q, %q) = %v, want %v", tc.ev, tc.st, tc.pm, got, tc.want)
		}
	}
}

func TestCatalogResolve(t *testing.T) {
	c := DefaultCatalog()
	if got := c.Resolve("5288799c-d8e3-48ce-a91d-587814acdee5"); got != "FAB" {
		t.Fatalf("Resolve(FAB offer) = %q", got)
	}
	if got := c.Resolve("5c1f6390-8999-4740-b16f-51380e1097e4"); got != "CS" {
		t.Fatalf("Resolve(CS offer) = %q", got)
	}
	if got := c.Resolve("not-a-known-offer"); got != ProductUnknown {
		t.Fatalf("Resolve(unknown) = %q, want %q", got, ProductUnknown)
	}
	if got := c.Resolve(""); got != ProductUnknown {
		t.Fatalf("Resolve(empty) = %q, want %q", got, ProductUnknown)
	}
}

func TestFlexAmountUnmarshal(t *testing.T) {
	var payload struct {
		Total FlexAmount `json:"total_price"`
	}
	if err := json.Unmarshal([]byte(`{"total_price":"R$ 49,90"}`), &payload); err != nil {
		t.Fatalf("string amount: %v", err)
	}
	if payload.Total.String() != "R$ 49,90" {
		t.Fatalf("string amount = %q", payload.Total)
	}

	if err := json.Unmarshal([]byte(`{"total_price":49.9}`), &payload); err != nil {
		t.Fatalf("numeric amount: %v", err)
	}
	if payload.Total.String() != "49.90" {
		t.Fatalf("numeric amount = %q", payload.Total)
	}

	if err := json.Unmarshal([]byte(`{"total_price":true}`), &payload); err == nil {
		t.Fatal("expected error for boolean amount")
	}
}
