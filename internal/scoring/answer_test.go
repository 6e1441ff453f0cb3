package scoring

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAnswerValueJSONShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want AnswerValue
	}{
		{"bare string", `"B"`, AnswerValue{Choice: "B"}},
		{"string array", `["A","C"]`, AnswerValue{Choices: []string{"A", "C"}}},
		{"empty array", `[]`, AnswerValue{Choices: []string{}}},
		{"empty string", `""`, AnswerValue{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got AnswerValue
			if err := json.Unmarshal([]byte(tt.raw), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}

			out, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(out) != tt.raw {
				t.Errorf("round trip = %s, want %s", out, tt.raw)
			}
		})
	}
}

func TestAnswerValueIsEmpty(t *testing.T) {
	if !(AnswerValue{}).IsEmpty() {
		t.Error("zero value should be empty")
	}
	if !(AnswerValue{Choices: []string{}}).IsEmpty() {
		t.Error("empty choice set should be empty")
	}
	if (AnswerValue{Choice: "A"}).IsEmpty() {
		t.Error("single choice should not be empty")
	}
	if (AnswerValue{Choices: []string{"A"}}).IsEmpty() {
		t.Error("non-empty choice set should not be empty")
	}
}

func TestParseAnswerSet(t *testing.T) {
	set, err := ParseAnswerSet([]byte(`{"q1":"B","q2":["A","C"],"q3":"42"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if set["q1"].Primary() != "B" {
		t.Errorf("q1 = %+v", set["q1"])
	}
	if got := set["q2"].Labels(); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Errorf("q2 labels = %v", got)
	}
	if set["q3"].Primary() != "42" {
		t.Errorf("q3 = %+v", set["q3"])
	}
}

func TestParseAnswerSetEmptyInput(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(""), []byte("  ")} {
		set, err := ParseAnswerSet(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if set == nil || len(set) != 0 {
			t.Errorf("parse %q = %v, want empty set", raw, set)
		}
	}
}
