package correlation

import "testing"

func TestStateSlots(t *testing.T) {
	s := New("12345678901230")

	if s.Placeholder() != "12345678901230" {
		t.Errorf("Placeholder() = %q", s.Placeholder())
	}
	if _, ok := s.Get(ItemValue); ok {
		t.Error("expected ItemValue to be unset on a new state")
	}

	s.Set(ItemValue, "12345")
	s.Set(CreditNature, "07")
	s.SetOriginalEntity("11444777000161")

	if v, ok := s.Get(ItemValue); !ok || v != "12345" {
		t.Errorf("Get(ItemValue) = %q, %v", v, ok)
	}
	if !s.Has(CreditNature) {
		t.Error("expected CreditNature to be set")
	}

	got := s.Slots()
	if len(got) != 2 || got[0] != CreditNature || got[1] != ItemValue {
		t.Errorf("Slots() = %v, want sorted [credit_nature item_value]", got)
	}

	s.Reset()
	if s.OriginalEntity() != "" || len(s.Slots()) != 0 {
		t.Errorf("Reset left original=%q slots=%v", s.OriginalEntity(), s.Slots())
	}
	if s.Placeholder() != "12345678901230" {
		t.Error("Reset must keep the placeholder")
	}
}
