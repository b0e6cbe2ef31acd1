package fsm

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	orderfsm "github.com/goliatone/go-orderfsm"
)

func TestLogFieldsRenderMachineFieldsFirst(t *testing.T) {
	fields := LogFields{"zone": "eu", FieldEvent: "Deliver", "attempt": 2, FieldMachineID: "o-1", FieldState: "Open"}
	got := fields.String()
	want := "machine_id=o-1 state=Open event=Deliver attempt=2 zone=eu"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if (LogFields{FieldMachineID: ""}).String() != "" {
		t.Fatalf("expected empty machine id to be omitted")
	}
}

func TestFmtLoggerWritesLevelMessageAndFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := WithLoggerFields(NewFmtLogger(buf), LogFields{FieldMachineID: "o-9"})
	logger = WithLoggerFields(logger.WithContext(context.Background()), sendFields(orderfsm.Canceled, orderfsm.Reopen))
	logger.Warn("reopening %s", "order")

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, " WARN  reopening order machine_id=o-9 state=Canceled event=Reopen") {
		t.Fatalf("unexpected line %q", line)
	}
}

func TestFmtLoggerCopiesDoNotShareFields(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewFmtLogger(buf)
	a := base.WithFields(LogFields{FieldMachineID: "a"})
	base.WithFields(LogFields{FieldMachineID: "b"})
	a.Info("one")
	base.Info("two")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	if !strings.HasSuffix(lines[0], "one machine_id=a") || strings.Contains(lines[1], "machine_id") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestFmtLoggerConcurrentMachinesWriteWholeLines(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewFmtLogger(buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m := New(WithID(id), WithLogger(base))
			m.SendAll(context.Background(), orderfsm.ReceivePayment, orderfsm.Refund)
		}(string(rune('a' + i)))
	}
	wg.Wait()

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.Contains(line, "machine_id=") {
			t.Fatalf("expected every line to carry its machine id, got %q", line)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NopLogger()
	logger.Error("ignored %d", 1)
	if WithLoggerFields(logger, LogFields{FieldKind: "x"}) != logger {
		t.Fatalf("expected nop logger without field support to be returned as is")
	}
}
