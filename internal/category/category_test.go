package category

import "testing"

// TestNormalize проверяет приведение категории к каноническому виду.
func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Groceries", "groceries"},
		{"  Food  ", "food"},
		{"ENTERTAINMENT", "entertainment"},
		{"", "other"},
		{"   ", "other"},
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestNormalizeIdempotent проверяет идемпотентность нормализации.
func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Groceries", " food ", "", "Other", "  MIXED Case  "}

	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

// TestSame проверяет сравнение категорий без учета регистра и пробелов.
func TestSame(t *testing.T) {
	if !Same("Food", " food ") {
		t.Fatal("expected Food and ' food ' to match")
	}

	if !Same("", "other") {
		t.Fatal("expected empty category to match fallback")
	}

	if Same("food", "groceries") {
		t.Fatal("expected different categories not to match")
	}
}

// TestDisplay проверяет отображаемую форму категории.
func TestDisplay(t *testing.T) {
	if got := Display("  Groceries "); got != "Groceries" {
		t.Fatalf("unexpected display: %q", got)
	}

	if got := Display(""); got != "Other" {
		t.Fatalf("unexpected fallback display: %q", got)
	}
}
