package env

import "testing"

func TestGetTrimsAndFallsBack(t *testing.T) {
	t.Setenv("CAMPUSCART_TEST_VALUE", "  console ")
	if got := Get("CAMPUSCART_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("CAMPUSCART_TEST_VALUE", "   ")
	if got := Get("CAMPUSCART_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
}

func TestFirstUsesKeyOrder(t *testing.T) {
	t.Setenv("CAMPUSCART_A", "")
	t.Setenv("CAMPUSCART_B", "b")
	t.Setenv("CAMPUSCART_C", "c")
	if got := First("none", "CAMPUSCART_A", "CAMPUSCART_B", "CAMPUSCART_C"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	if got := First("none"); got != "none" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
