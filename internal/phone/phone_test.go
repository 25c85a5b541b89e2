package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"no digits", "abc-+()", ""},
		{"already canonical", "5511987654321", "5511987654321"},
		{"local 11 digits", "11987654321", "5511987654321"},
		{"local 10 digits", "1187654321", "551187654321"},
		{"formatted international", "+55 (11) 98765-4321", "5511987654321"},
		{"spaces and dots", "11 98765.4321", "5511987654321"},
		{"whatsapp jid digits", "5511987654321", "5511987654321"},
		{"subscriber nine preserved", "011987654321", "55011987654321"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

// Both ingress paths must land on the same key for the same customer,
// and applying Normalize twice must not change the result.
func TestNormalizeConsistency(t *testing.T) {
	variants := []string{
		"+55 11 98765-4321",
		"11987654321",
		"(11) 98765-4321",
		"5511987654321",
	}
	const want = "5511987654321"
	for _, v := range variants {
		got := Normalize(v)
		if got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", v, got, want)
		}
		if again := Normalize(got); again != got {
			t.Fatalf("Normalize not idempotent: %q -> %q", got, again)
		}
	}
}
