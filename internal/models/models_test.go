package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStatementType_Parse(t *testing.T) {
	tests := []struct {
		input    string
		expected StatementType
		ok       bool
	}{
		{"income_statement", IncomeStatement, true},
		{"Balance_Sheet", BalanceSheet, true},
		{"cash_flow", CashFlowStatement, true},
		{" cash_flow_statement ", CashFlowStatement, true},
		{"equity", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseStatementType(tt.input)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("ParseStatementType(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestValueCell_UnmarshalShapes(t *testing.T) {
	var doc struct {
		Values map[string]ValueCell `json:"values"`
	}
	input := `{"values": {
		"2024": "1,234",
		"2023": 90.5,
		"2022": null,
		"2021": {"value": "(12)", "meta": {"name": "us-gaap:NetIncomeLoss", "unitref": "usd", "scale": "6"}}
	}}`
	if err := json.Unmarshal([]byte(input), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := doc.Values["2024"].Text(); got != "1,234" {
		t.Errorf("expected text 1,234, got %s", got)
	}
	if got := doc.Values["2023"].Text(); got != "90.5" {
		t.Errorf("expected number text to survive as 90.5, got %s", got)
	}
	if !doc.Values["2022"].IsNull() {
		t.Errorf("expected null cell")
	}

	cell := doc.Values["2021"]
	if cell.Meta == nil || cell.Meta.Name != "us-gaap:NetIncomeLoss" {
		t.Fatalf("expected meta name to be preserved, got %+v", cell.Meta)
	}
	if cmp, ok := cell.Comparable(); !ok || cmp != "-12" {
		t.Errorf("expected comparable -12, got %q (%v)", cmp, ok)
	}

	out, err := json.Marshal(cell)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), `"meta":{"name":"us-gaap:NetIncomeLoss"`) {
		t.Errorf("expected structured cell to marshal with meta, got %s", out)
	}

	out, _ = json.Marshal(doc.Values["2023"])
	if string(out) != "90.5" {
		t.Errorf("expected scalar cell to marshal as scalar, got %s", out)
	}
}

func TestValueCell_RejectsNestedValue(t *testing.T) {
	var cell ValueCell
	if err := json.Unmarshal([]byte(`[1,2]`), &cell); err == nil {
		t.Error("expected error for array value")
	}
}

func TestValueCell_ZeroSemantics(t *testing.T) {
	tests := []struct {
		name   string
		cell   ValueCell
		isZero bool
	}{
		{"null", NewValueCell(nil), true},
		{"zero float", ZeroCell(), true},
		{"zero string", NewValueCell("0"), true},
		{"dash", NewValueCell("—"), true},
		{"value", NewValueCell("1,000"), false},
		{"negative", NewValueCell(json.Number("-3")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cell.IsZero(); got != tt.isZero {
				t.Errorf("IsZero() = %v, want %v", got, tt.isZero)
			}
		})
	}

	if got := NewValueCell(nil).OrZero(); got.Text() != "0" {
		t.Errorf("expected null to coerce to 0, got %q", got.Text())
	}
	if got := NewValueCell("5").OrZero(); got.Text() != "5" {
		t.Errorf("expected non-null to be kept, got %q", got.Text())
	}
}

func TestValueCell_Float(t *testing.T) {
	f, ok := NewValueCell("$(1,500.25)").Float()
	if !ok || f != -1500.25 {
		t.Errorf("expected -1500.25, got %v (%v)", f, ok)
	}
	if _, ok := NewValueCell("n/a").Float(); ok {
		t.Error("expected placeholder to be non-numeric")
	}
}

func TestDocument_HasDataAndValidate(t *testing.T) {
	doc := &Document{
		StatementType: BalanceSheet,
		Sections: []*Section{
			{Label: "Assets", Items: []*Item{{Label: "Cash"}}},
		},
	}
	if !doc.HasData() {
		t.Error("expected document to have data")
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	doc.Error = "table not found"
	if doc.HasData() {
		t.Error("expected errored document to have no data")
	}

	var nilDoc *Document
	if nilDoc.HasData() || nilDoc.ItemCount() != 0 {
		t.Error("expected nil document to be empty")
	}

	bad := &Document{Sections: []*Section{{}}}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unnamed section")
	}
}

func TestDocument_Provenance(t *testing.T) {
	if got := (&Document{FilingURL: "f", SourceURL: "s"}).Provenance(); got != "s" {
		t.Errorf("expected source url to win, got %s", got)
	}
	if got := (&Document{FilingURL: "f"}).Provenance(); got != "f" {
		t.Errorf("expected filing url fallback, got %s", got)
	}
}
