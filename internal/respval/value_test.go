package respval

import (
	"encoding/json"
	"testing"
)

func TestEqualAcrossKinds(t *testing.T) {
	if !NewInt(3).Equal(NewInt(3)) {
		t.Fatal("expected equal ints to compare equal")
	}
	if NewInt(3).Equal(NewInt(4)) {
		t.Fatal("expected different ints to compare unequal")
	}
	if NewInt(3).Equal(NewReal(3)) {
		t.Fatal("expected values of different kind to never compare equal")
	}
	if !UnknownValue.Equal(Value{}) {
		t.Fatal("expected two Unknown values to compare equal")
	}
	if !NewIntArray([]int64{1, 2}).Equal(NewIntArray([]int64{1, 2})) {
		t.Fatal("expected equal int arrays to compare equal")
	}
	if NewIntArray([]int64{1, 2}).Equal(NewIntArray([]int64{1, 3})) {
		t.Fatal("expected different int arrays to compare unequal")
	}
}

func TestStringRendersEachKind(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{NewBool(true), "true"},
		{NewInt(42), "42"},
		{NewReal(1.5), "1.5"},
		{NewString("ok"), "ok"},
		{UnknownValue, "<unknown>"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestParseScalar(t *testing.T) {
	v, err := ParseScalar("int", "7")
	if err != nil {
		t.Fatalf("ParseScalar: %v", err)
	}
	if n, ok := v.AsInt(); !ok || n != 7 {
		t.Fatalf("expected AsInt 7, got %v ok=%v", n, ok)
	}

	if _, err := ParseScalar("int", "not-a-number"); err == nil {
		t.Fatal("expected an error for a malformed int token")
	}
	if _, err := ParseScalar("bogus", "x"); err == nil {
		t.Fatal("expected an error for an unknown type name")
	}
}

func TestParseArray(t *testing.T) {
	v, err := ParseArray("real", []string{"1.5", "2.5"})
	if err != nil {
		t.Fatalf("ParseArray: %v", err)
	}
	arr, ok := v.AsRealArray()
	if !ok || len(arr) != 2 || arr[0] != 1.5 || arr[1] != 2.5 {
		t.Fatalf("unexpected real array: %v ok=%v", arr, ok)
	}
}

func TestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(NewInt(9))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded struct {
		Kind  string `json:"kind"`
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Kind != "int" || decoded.Value != 9 {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}
