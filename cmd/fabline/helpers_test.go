package main

import (
	"testing"
)

func TestParseStockLines(t *testing.T) {
	lines, err := parseStockLines([]string{"frame-a=200", "screw-m3=500"})
	if err != nil {
		t.Fatalf("parseStockLines: %v", err)
	}
	if len(lines) != 2 || lines[0].ComponentID != "frame-a" || lines[0].RequiredQty != 200 {
		t.Fatalf("unexpected lines: %+v", lines)
	}

	for _, bad := range []string{"frame-a", "frame-a=", "frame-a=abc", "frame-a=0", "frame-a=-5"} {
		if _, err := parseStockLines([]string{bad}); err == nil {
			t.Fatalf("%q should fail to parse", bad)
		}
	}
}

func TestParseWithdrawItems(t *testing.T) {
	items, err := parseWithdrawItems([]string{"frame-a=150"})
	if err != nil {
		t.Fatalf("parseWithdrawItems: %v", err)
	}
	if len(items) != 1 || items[0].WithdrawnQty != 150 {
		t.Fatalf("unexpected items: %+v", items)
	}

	if _, err := parseWithdrawItems([]string{"frame-a=zero"}); err == nil {
		t.Fatal("non-numeric quantity should fail")
	}
}

func TestHumanizeStatus(t *testing.T) {
	cases := map[string]string{
		"in_progress": "In Progress",
		"pending":     "Pending",
		"issue":       "Issue",
		"complete":    "Complete",
	}
	for input, want := range cases {
		if got := humanizeStatus(input); got != want {
			t.Fatalf("humanizeStatus(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestStepStateCellMarkers(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	if got := stepStateCell("pending", true, true); got != "Skipped" {
		t.Fatalf("skipped cell: %q", got)
	}
	if got := stepStateCell("pending", true, false); got != "Pending (locked)" {
		t.Fatalf("locked cell: %q", got)
	}
	if got := stepStateCell("complete", false, false); got != "Complete" {
		t.Fatalf("complete cell: %q", got)
	}
}
