package catalog

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizeOptionsStringArray(t *testing.T) {
	opts := NormalizeOptions(json.RawMessage(`["2 m/s","4 m/s","8 m/s"]`))
	want := []Option{
		{Label: "A", Text: "2 m/s"},
		{Label: "B", Text: "4 m/s"},
		{Label: "C", Text: "8 m/s"},
	}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("got %+v, want %+v", opts, want)
	}
}

func TestNormalizeOptionsObjectArray(t *testing.T) {
	raw := json.RawMessage(`[
		{"label":"A","text":"increases"},
		{"text":"decreases","imageRef":"opts/q1-b.png"},
		{"label":"C","image":"opts/q1-c.png"}
	]`)
	opts := NormalizeOptions(raw)
	want := []Option{
		{Label: "A", Text: "increases"},
		{Label: "B", Text: "decreases", ImageRef: "opts/q1-b.png"},
		{Label: "C", ImageRef: "opts/q1-c.png"},
	}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("got %+v, want %+v", opts, want)
	}
}

func TestNormalizeOptionsKeyedObjectPreservesDocumentOrder(t *testing.T) {
	// 键序与字典序故意相反，map 形态会丢这个顺序
	raw := json.RawMessage(`{"D":"last","C":"third","B":{"text":"second"},"A":"first"}`)
	opts := NormalizeOptions(raw)

	wantLabels := []string{"D", "C", "B", "A"}
	if len(opts) != len(wantLabels) {
		t.Fatalf("got %d options, want %d", len(opts), len(wantLabels))
	}
	for i, opt := range opts {
		if opt.Label != wantLabels[i] {
			t.Errorf("position %d: label = %q, want %q", i, opt.Label, wantLabels[i])
		}
	}
	if opts[2].Text != "second" {
		t.Errorf("object-valued entry text = %q", opts[2].Text)
	}
}

func TestNormalizeOptionsImageFieldAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"imageRef", `[{"imageRef":"a.png"}]`, "a.png"},
		{"image", `[{"image":"b.png"}]`, "b.png"},
		{"imageUrl", `[{"imageUrl":"c.png"}]`, "c.png"},
		{"imageRef wins", `[{"imageRef":"a.png","image":"b.png"}]`, "a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NormalizeOptions(json.RawMessage(tt.raw))
			if len(opts) != 1 || opts[0].ImageRef != tt.want {
				t.Errorf("got %+v, want imageRef %q", opts, tt.want)
			}
		})
	}
}

func TestNormalizeOptionsEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "null", "[]", `"scalar"`} {
		if opts := NormalizeOptions(json.RawMessage(raw)); len(opts) != 0 {
			t.Errorf("input %q: got %+v, want none", raw, opts)
		}
	}
}

func TestNormalizeOptionsLabelsBeyondAlphabet(t *testing.T) {
	if got := indexLabel(25); got != "Z" {
		t.Errorf("indexLabel(25) = %q, want Z", got)
	}
	if got := indexLabel(26); got != "27" {
		t.Errorf("indexLabel(26) = %q, want 27", got)
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		name         string
		questionType string
		sectionType  string
		want         QuestionType
	}{
		{"question type wins", "integer", "single_choice", Integer},
		{"falls back to section type", "", "multiple_choice", MultipleChoice},
		{"unknown question type falls back", "essay", "integer", Integer},
		{"both unknown defaults to single choice", "essay", "match", SingleChoice},
		{"both empty defaults to single choice", "", "", SingleChoice},
		{"case and whitespace tolerant", " Single_Choice ", "", SingleChoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeType(tt.questionType, tt.sectionType); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestApplyCorrectAnswerShapes(t *testing.T) {
	tests := []struct {
		name  string
		qType QuestionType
		raw   string
		check func(t *testing.T, q Question)
	}{
		{
			"single choice from string", SingleChoice, `"B"`,
			func(t *testing.T, q Question) {
				if q.CorrectChoice != "B" {
					t.Errorf("correctChoice = %q", q.CorrectChoice)
				}
			},
		},
		{
			"single choice from one-element array", SingleChoice, `["C"]`,
			func(t *testing.T, q Question) {
				if q.CorrectChoice != "C" {
					t.Errorf("correctChoice = %q", q.CorrectChoice)
				}
			},
		},
		{
			"multiple choice from array", MultipleChoice, `["A","D"]`,
			func(t *testing.T, q Question) {
				if !reflect.DeepEqual(q.CorrectChoices, []string{"A", "D"}) {
					t.Errorf("correctChoices = %v", q.CorrectChoices)
				}
			},
		},
		{
			"multiple choice from bare string", MultipleChoice, `"B"`,
			func(t *testing.T, q Question) {
				if !reflect.DeepEqual(q.CorrectChoices, []string{"B"}) {
					t.Errorf("correctChoices = %v", q.CorrectChoices)
				}
			},
		},
		{
			"integer from string", Integer, `"42"`,
			func(t *testing.T, q Question) {
				if q.CorrectValue != "42" {
					t.Errorf("correctValue = %q", q.CorrectValue)
				}
			},
		},
		{
			"integer from json number", Integer, `42`,
			func(t *testing.T, q Question) {
				if q.CorrectValue != "42" {
					t.Errorf("correctValue = %q", q.CorrectValue)
				}
			},
		},
		{
			"null leaves key empty", SingleChoice, `null`,
			func(t *testing.T, q Question) {
				if q.CorrectChoice != "" {
					t.Errorf("correctChoice = %q", q.CorrectChoice)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Question{Type: tt.qType}
			applyCorrectAnswer(&q, json.RawMessage(tt.raw))
			tt.check(t, q)
		})
	}
}
