package fsm

import (
	"testing"

	orderfsm "github.com/goliatone/go-orderfsm"
)

func TestDefaultTableValidates(t *testing.T) {
	if err := DefaultTable().Validate(); err != nil {
		t.Fatalf("expected default table to validate: %v", err)
	}
}

func TestDefaultTableRows(t *testing.T) {
	type row struct {
		source orderfsm.OrderState
		event  orderfsm.OrderEvent
		guard  string
		target string
		action string
	}
	want := []row{
		{orderfsm.Open, orderfsm.ReceivePayment, "", "ReadyForDelivery", "receive_payment"},
		{orderfsm.Open, orderfsm.UnlockDelivery, "", "ReadyForDelivery", ""},
		{orderfsm.Open, orderfsm.Cancel, "", "Canceled", ""},
		{orderfsm.ReadyForDelivery, orderfsm.Deliver, "is_paid", "Completed", ""},
		{orderfsm.ReadyForDelivery, orderfsm.Deliver, "not_paid", "AwaitingPayment", ""},
		{orderfsm.ReadyForDelivery, orderfsm.Refund, "is_paid", "Canceled", "refund_payment"},
		{orderfsm.ReadyForDelivery, orderfsm.Cancel, "", "Canceled", ""},
		{orderfsm.ReadyForDelivery, orderfsm.ReceivePayment, "", "internal", "receive_payment"},
		{orderfsm.AwaitingPayment, orderfsm.ReceivePayment, "", "Completed", "receive_payment"},
		{orderfsm.Completed, orderfsm.Refund, "", "Canceled", "refund_payment"},
		{orderfsm.Canceled, orderfsm.Reopen, "", "Open", ""},
		{orderfsm.Canceled, orderfsm.ReceivePayment, "", "internal", "receive_payment"},
	}

	got := DefaultTable().Transitions()
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i, tr := range got {
		w := want[i]
		if tr.Source != w.source || tr.Event != w.event {
			t.Fatalf("row %d: expected %s/%s, got %s/%s", i, w.source, w.event, tr.Source, tr.Event)
		}
		if tr.GuardName != w.guard {
			t.Fatalf("row %d: expected guard %q, got %q", i, w.guard, tr.GuardName)
		}
		if tr.TargetName() != w.target {
			t.Fatalf("row %d: expected target %s, got %s", i, w.target, tr.TargetName())
		}
		if tr.ActionName != w.action {
			t.Fatalf("row %d: expected action %q, got %q", i, w.action, tr.ActionName)
		}
		if tr.ID == "" {
			t.Fatalf("row %d: expected generated id", i)
		}
	}
}

func TestTableResolvesAtMostOneTransition(t *testing.T) {
	table := DefaultTable()
	for _, state := range orderfsm.AllStates() {
		for _, event := range orderfsm.AllEvents() {
			for _, ext := range extendedStates {
				matches := 0
				for _, tr := range table.Candidates(state, event) {
					if tr.Allows(ext) {
						matches++
					}
				}
				if matches > 1 {
					t.Fatalf("%s/%s/%s: %d transitions apply", state, event, ext, matches)
				}
			}
		}
	}
}

func TestTableDeliverFromReadyForDeliveryAlwaysResolves(t *testing.T) {
	table := DefaultTable()

	tr, ok := table.Resolve(orderfsm.ReadyForDelivery, orderfsm.Deliver, ExtendedState{Paid: true})
	if !ok || tr.Target != orderfsm.Completed {
		t.Fatalf("expected paid delivery to complete, got %+v ok=%v", tr, ok)
	}
	tr, ok = table.Resolve(orderfsm.ReadyForDelivery, orderfsm.Deliver, ExtendedState{Paid: false})
	if !ok || tr.Target != orderfsm.AwaitingPayment {
		t.Fatalf("expected unpaid delivery to await payment, got %+v ok=%v", tr, ok)
	}
}

func TestTableResolveUnknownPair(t *testing.T) {
	if _, ok := DefaultTable().Resolve(orderfsm.Open, orderfsm.Deliver, ExtendedState{}); ok {
		t.Fatalf("expected no transition for Deliver while Open")
	}
	if _, ok := DefaultTable().Resolve(orderfsm.Open, orderfsm.OrderEvent(42), ExtendedState{}); ok {
		t.Fatalf("expected no transition for an undeclared event")
	}
}

func TestNewTableRejectsOverlappingGuards(t *testing.T) {
	_, err := NewTable([]Transition{
		{Source: orderfsm.Open, Event: orderfsm.Deliver, Target: orderfsm.Completed},
		{Source: orderfsm.Open, Event: orderfsm.Deliver, Target: orderfsm.Canceled, Guard: isPaid, GuardName: "is_paid"},
	})
	if err == nil {
		t.Fatalf("expected overlapping rows to be rejected")
	}
	if orderfsm.ErrorCode(err) != ErrCodeAmbiguousTransition {
		t.Fatalf("expected ambiguous transition code, got %q", orderfsm.ErrorCode(err))
	}
}

func TestNewTableRejectsGuardPairWithGap(t *testing.T) {
	_, err := NewTable([]Transition{
		{Source: orderfsm.Open, Event: orderfsm.Deliver, Target: orderfsm.Completed, Guard: isPaid, GuardName: "is_paid"},
		{Source: orderfsm.Open, Event: orderfsm.Deliver, Target: orderfsm.Canceled, Guard: isPaid, GuardName: "is_paid"},
	})
	if err == nil {
		t.Fatalf("expected duplicated guards to be rejected")
	}
}

func TestNewTableAllowsSingleGuardWithoutFallback(t *testing.T) {
	table, err := NewTable([]Transition{
		{Source: orderfsm.Open, Event: orderfsm.Refund, Target: orderfsm.Canceled, Guard: isPaid, GuardName: "is_paid"},
	})
	if err != nil {
		t.Fatalf("expected single guarded row to validate: %v", err)
	}
	if _, ok := table.Resolve(orderfsm.Open, orderfsm.Refund, ExtendedState{Paid: false}); ok {
		t.Fatalf("expected unpaid refund to have no transition")
	}
}

func TestNewTableRejectsInvalidRows(t *testing.T) {
	cases := map[string]Transition{
		"source": {Source: orderfsm.OrderState(9), Event: orderfsm.Cancel, Target: orderfsm.Canceled},
		"event":  {Source: orderfsm.Open, Event: orderfsm.OrderEvent(9), Target: orderfsm.Canceled},
		"target": {Source: orderfsm.Open, Event: orderfsm.Cancel, Target: orderfsm.OrderState(-1)},
	}
	for name, tr := range cases {
		_, err := NewTable([]Transition{tr})
		if err == nil {
			t.Fatalf("%s: expected invalid row to be rejected", name)
		}
		if !orderfsm.HasErrorCode(err, ErrCodeInvalidTable) {
			t.Fatalf("%s: expected %s, got %v", name, ErrCodeInvalidTable, err)
		}
	}
}

func TestValidateNilTable(t *testing.T) {
	var table *Table
	if err := table.Validate(); !orderfsm.HasErrorCode(err, ErrCodeInvalidTable) {
		t.Fatalf("expected %s for a nil table, got %v", ErrCodeInvalidTable, err)
	}
}

func TestNewTableInternalTargetsSource(t *testing.T) {
	table, err := NewTable([]Transition{
		{Source: orderfsm.Canceled, Event: orderfsm.ReceivePayment, Internal: true, Target: orderfsm.Completed},
	})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	tr := table.Transitions()[0]
	if tr.Target != orderfsm.Canceled {
		t.Fatalf("expected internal row to target its source, got %s", tr.Target)
	}
}

func TestTableAcceptedEvents(t *testing.T) {
	table := DefaultTable()
	unpaid := table.AcceptedEvents(orderfsm.ReadyForDelivery, ExtendedState{Paid: false})
	paid := table.AcceptedEvents(orderfsm.ReadyForDelivery, ExtendedState{Paid: true})

	if containsEvent(unpaid, orderfsm.Refund) {
		t.Fatalf("expected refund to be unavailable while unpaid: %v", unpaid)
	}
	if !containsEvent(paid, orderfsm.Refund) {
		t.Fatalf("expected refund to be available while paid: %v", paid)
	}
	if len(table.AcceptedEvents(orderfsm.Completed, ExtendedState{Paid: true})) != 1 {
		t.Fatalf("expected only refund from completed")
	}
}

func containsEvent(events []orderfsm.OrderEvent, target orderfsm.OrderEvent) bool {
	for _, evt := range events {
		if evt == target {
			return true
		}
	}
	return false
}
