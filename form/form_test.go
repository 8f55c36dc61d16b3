package form

import (
	"testing"
)

type testParams struct {
	Name   string            `form:"name"`
	Count  int64             `form:"count"`
	Active bool              `form:"active"`
	Rate   float64           `form:"rate"`
	Hidden string            `form:"-"`
	Meta   map[string]string `form:"metadata"`
}

type testEmbedded struct {
	testParams
	Extra string `form:"extra"`
}

type testLine struct {
	Amount      int64  `form:"amount"`
	Description string `form:"description"`
}

type testNested struct {
	Currency string      `form:"currency"`
	Lines    []*testLine `form:"line_items"`
}

type testOuter struct {
	Type string      `form:"type"`
	Cart *testNested `form:"cart"`
}

func TestEncodeScalars(t *testing.T) {
	values, err := Encode(&testParams{
		Name:   "front counter",
		Count:  3,
		Active: true,
		Rate:   1.5,
		Hidden: "should not appear",
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := values.Get("name"); got != "front counter" {
		t.Errorf("name: got %q", got)
	}
	if got := values.Get("count"); got != "3" {
		t.Errorf("count: got %q", got)
	}
	if got := values.Get("active"); got != "true" {
		t.Errorf("active: got %q", got)
	}
	if got := values.Get("rate"); got != "1.5" {
		t.Errorf("rate: got %q", got)
	}
	if _, ok := values["Hidden"]; ok {
		t.Error("field tagged - was encoded")
	}
}

func TestEncodeSkipsZeroValues(t *testing.T) {
	values, err := Encode(&testParams{Name: "only me"})
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 1 {
		t.Errorf("expected 1 value, got %d: %v", len(values), values)
	}
}

func TestEncodeMap(t *testing.T) {
	values, err := Encode(&testParams{
		Meta: map[string]string{"order": "or_123"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := values.Get("metadata[order]"); got != "or_123" {
		t.Errorf("metadata[order]: got %q", got)
	}
}

func TestEncodeEmbedded(t *testing.T) {
	values, err := Encode(&testEmbedded{
		testParams: testParams{Name: "embedded"},
		Extra:      "value",
	})
	if err != nil {
		t.Fatal(err)
	}
	// anonymous embeds share the parent namespace
	if got := values.Get("name"); got != "embedded" {
		t.Errorf("name: got %q", got)
	}
	if got := values.Get("extra"); got != "value" {
		t.Errorf("extra: got %q", got)
	}
}

func TestEncodeNested(t *testing.T) {
	values, err := Encode(&testOuter{
		Type: "cart",
		Cart: &testNested{
			Currency: "nzd",
			Lines: []*testLine{
				{Amount: 1500, Description: "flat white"},
				{Amount: 450, Description: "biscuit"},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := values.Get("cart[currency]"); got != "nzd" {
		t.Errorf("cart[currency]: got %q", got)
	}
	if got := values.Get("cart[line_items][0][amount]"); got != "1500" {
		t.Errorf("line 0 amount: got %q", got)
	}
	if got := values.Get("cart[line_items][1][description]"); got != "biscuit" {
		t.Errorf("line 1 description: got %q", got)
	}
}

func TestEncodeNil(t *testing.T) {
	values, err := Encode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 0 {
		t.Errorf("expected no values, got %v", values)
	}

	var p *testParams
	values, err = Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 0 {
		t.Errorf("expected no values for nil pointer, got %v", values)
	}
}

func TestEncodeRejectsNonStruct(t *testing.T) {
	if _, err := Encode("not a struct"); err == nil {
		t.Error("expected an error for a non-struct value")
	}
}
