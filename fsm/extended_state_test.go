package fsm

import "testing"

func TestExtendedStateVariablesRoundTrip(t *testing.T) {
	for _, paid := range []bool{false, true} {
		ext, err := ExtendedStateFromVariables(ExtendedState{Paid: paid}.Variables())
		if err != nil {
			t.Fatalf("paid=%t: unexpected error %v", paid, err)
		}
		if ext.Paid != paid {
			t.Fatalf("expected paid=%t, got %t", paid, ext.Paid)
		}
	}
}

func TestExtendedStateFromVariablesAcceptsBoolStrings(t *testing.T) {
	ext, err := ExtendedStateFromVariables(map[string]any{PaidKey: " TRUE "})
	if err != nil || !ext.Paid {
		t.Fatalf("expected string true to parse, got %v %v", ext, err)
	}
}

func TestExtendedStateFromVariablesMalformed(t *testing.T) {
	cases := map[string]map[string]any{
		"nil map":     nil,
		"missing":     {"other": true},
		"nil value":   {PaidKey: nil},
		"number":      {PaidKey: 1},
		"bad string":  {PaidKey: "yes"},
		"nested maps": {PaidKey: map[string]any{"value": true}},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			ext, err := ExtendedStateFromVariables(vars)
			if !IsMalformedExtendedState(err) {
				t.Fatalf("expected malformed extended state error, got %v", err)
			}
			if ext.Paid {
				t.Fatalf("expected malformed variables to fall back to unpaid")
			}
		})
	}
}

func TestExtendedStateString(t *testing.T) {
	if got := (ExtendedState{Paid: true}).String(); got != "paid=true" {
		t.Fatalf("unexpected string %q", got)
	}
}
