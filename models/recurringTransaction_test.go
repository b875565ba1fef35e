package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func assertDeltas(t *testing.T, gotIn, gotOut decimal.Decimal, wantIn, wantOut string) {
	t.Helper()
	if !gotIn.Equal(dec(wantIn)) {
		t.Fatalf("inflow delta: expected %s, got %s", wantIn, gotIn)
	}
	if !gotOut.Equal(dec(wantOut)) {
		t.Fatalf("outflow delta: expected %s, got %s", wantOut, gotOut)
	}
}

func TestScheduledFlowDeltas_CreateOutflow(t *testing.T) {
	// Creating a -50 record with the flag set adds 50 to scheduled
	// outflows and leaves inflows untouched.
	in, out := scheduledFlowDeltas(decimal.Zero, dec("-50"), false, true)
	assertDeltas(t, in, out, "0", "50")
}

func TestScheduledFlowDeltas_CreateInflow(t *testing.T) {
	in, out := scheduledFlowDeltas(decimal.Zero, dec("1200.5"), false, true)
	assertDeltas(t, in, out, "1200.5", "0")
}

func TestScheduledFlowDeltas_CreateWithoutFlag(t *testing.T) {
	in, out := scheduledFlowDeltas(decimal.Zero, dec("-50"), false, false)
	assertDeltas(t, in, out, "0", "0")
}

func TestScheduledFlowDeltas_DeleteReversesCreate(t *testing.T) {
	createIn, createOut := scheduledFlowDeltas(decimal.Zero, dec("-50"), false, true)
	deleteIn, deleteOut := scheduledFlowDeltas(dec("-50"), decimal.Zero, true, false)
	if !createIn.Add(deleteIn).IsZero() || !createOut.Add(deleteOut).IsZero() {
		t.Fatalf("create+delete should cancel, got inflow %s outflow %s",
			createIn.Add(deleteIn), createOut.Add(deleteOut))
	}
	assertDeltas(t, deleteIn, deleteOut, "0", "-50")
}

func TestScheduledFlowDeltas_OutflowToInflow(t *testing.T) {
	// -50 edited to +30: outflows drop by the old magnitude, inflows gain
	// the new amount, in one adjustment.
	in, out := scheduledFlowDeltas(dec("-50"), dec("30"), true, true)
	assertDeltas(t, in, out, "30", "-50")
}

func TestScheduledFlowDeltas_InflowToOutflow(t *testing.T) {
	in, out := scheduledFlowDeltas(dec("30"), dec("-50"), true, true)
	assertDeltas(t, in, out, "-30", "50")
}

func TestScheduledFlowDeltas_OutflowToOutflow(t *testing.T) {
	in, out := scheduledFlowDeltas(dec("-50"), dec("-80"), true, true)
	assertDeltas(t, in, out, "0", "30")

	in, out = scheduledFlowDeltas(dec("-80"), dec("-50"), true, true)
	assertDeltas(t, in, out, "0", "-30")
}

func TestScheduledFlowDeltas_InflowToInflow(t *testing.T) {
	in, out := scheduledFlowDeltas(dec("100"), dec("120"), true, true)
	assertDeltas(t, in, out, "20", "0")
}

func TestScheduledFlowDeltas_FlagTurnedOff(t *testing.T) {
	// Amount unchanged but the flag cleared: contribution is withdrawn.
	in, out := scheduledFlowDeltas(dec("-50"), dec("-50"), true, false)
	assertDeltas(t, in, out, "0", "-50")
}

func TestScheduledFlowDeltas_FlagTurnedOn(t *testing.T) {
	in, out := scheduledFlowDeltas(dec("75"), dec("75"), false, true)
	assertDeltas(t, in, out, "75", "0")
}

func TestScheduledFlowDeltas_NoChange(t *testing.T) {
	in, out := scheduledFlowDeltas(dec("-50"), dec("-50"), true, true)
	assertDeltas(t, in, out, "0", "0")
}
