package session

import (
	"reflect"
	"testing"

	"phynetix_backend/internal/catalog"
	"phynetix_backend/internal/scoring"
	"phynetix_backend/internal/util"
)

func paper() []catalog.Question {
	return []catalog.Question{
		{ID: "q1", Type: catalog.SingleChoice},
		{ID: "q2", Type: catalog.MultipleChoice},
		{ID: "q3", Type: catalog.Integer},
	}
}

func TestSetAnswerSingleChoiceOverwrites(t *testing.T) {
	s := NewAnswerStore(paper())

	if err := s.SetAnswer("q1", "A"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnswer("q1", "C"); err != nil {
		t.Fatal(err)
	}
	if got := s.Answers()["q1"].Primary(); got != "C" {
		t.Errorf("answer = %q, want C", got)
	}
}

func TestSetAnswerMultipleChoiceToggles(t *testing.T) {
	s := NewAnswerStore(paper())

	s.SetAnswer("q2", "A")
	s.SetAnswer("q2", "B")
	if got := s.Answers()["q2"].Labels(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("labels = %v, want [A B]", got)
	}

	// 再点一次取消选中
	s.SetAnswer("q2", "A")
	if got := s.Answers()["q2"].Labels(); !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("labels = %v, want [B]", got)
	}

	// 切空即整键消失，与从未作答无法区分
	s.SetAnswer("q2", "B")
	if _, present := s.Answers()["q2"]; present {
		t.Error("empty selection should remove the key")
	}
}

func TestSetAnswerIntegerSanitized(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain digits", "42", "42"},
		{"leading minus kept", "-17", "-17"},
		{"letters stripped", "4a2b", "42"},
		{"interior minus stripped", "4-2", "42"},
		{"whitespace trimmed", "  36  ", "36"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewAnswerStore(paper())
			if err := s.SetAnswer("q3", tt.input); err != nil {
				t.Fatal(err)
			}
			if got := s.Answers()["q3"].Primary(); got != tt.want {
				t.Errorf("sanitized = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetAnswerIntegerEmptyAfterSanitize(t *testing.T) {
	s := NewAnswerStore(paper())
	s.SetAnswer("q3", "42")

	for _, input := range []string{"", "abc", "-", "  -  "} {
		s.SetAnswer("q3", "42")
		if err := s.SetAnswer("q3", input); err != nil {
			t.Fatal(err)
		}
		if _, present := s.Answers()["q3"]; present {
			t.Errorf("input %q: key should be removed", input)
		}
	}
}

func TestSetAnswerUnknownQuestion(t *testing.T) {
	s := NewAnswerStore(paper())
	if err := s.SetAnswer("nope", "A"); err == nil {
		t.Error("expected error for unknown question")
	}
}

func TestClearAnswerRemovesKey(t *testing.T) {
	s := NewAnswerStore(paper())
	s.SetAnswer("q1", "A")

	if err := s.ClearAnswer("q1"); err != nil {
		t.Fatal(err)
	}
	if _, present := s.Answers()["q1"]; present {
		t.Error("cleared answer still present")
	}
	// 清不存在的键也不报错
	if err := s.ClearAnswer("q1"); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestVisitIdempotent(t *testing.T) {
	s := NewAnswerStore(paper())

	s.Visit("q2")
	v1 := s.Version()
	s.Visit("q2")
	if s.Version() != v1 {
		t.Error("repeat visit bumped version")
	}

	nav := s.Navigation()
	if !reflect.DeepEqual(nav.Visited, []string{"q2"}) {
		t.Errorf("visited = %v, want [q2]", nav.Visited)
	}
}

func TestToggleMarkForReview(t *testing.T) {
	s := NewAnswerStore(paper())

	s.ToggleMarkForReview("q1")
	if nav := s.Navigation(); !reflect.DeepEqual(nav.MarkedForReview, []string{"q1"}) {
		t.Errorf("marked = %v, want [q1]", nav.MarkedForReview)
	}
	s.ToggleMarkForReview("q1")
	if nav := s.Navigation(); len(nav.MarkedForReview) != 0 {
		t.Errorf("marked = %v, want empty", nav.MarkedForReview)
	}
}

func TestAccumulateTime(t *testing.T) {
	s := NewAnswerStore(paper())

	s.AccumulateTime("q1", 10)
	s.AccumulateTime("q1", 5)
	s.AccumulateTime("q2", 3)
	s.AccumulateTime("q1", -4) // 非正值忽略
	s.AccumulateTime("q1", 0)

	if got := s.TimeSpent()["q1"]; got != 15 {
		t.Errorf("q1 time = %d, want 15", got)
	}
	if got := s.TotalTimeSeconds(); got != 18 {
		t.Errorf("total time = %d, want 18", got)
	}
}

func TestFrozenStoreRejectsMutation(t *testing.T) {
	s := NewAnswerStore(paper())
	s.SetAnswer("q1", "A")
	s.Freeze()

	if err := s.SetAnswer("q1", "B"); err != util.ErrAttemptFrozen {
		t.Errorf("SetAnswer after freeze: %v", err)
	}
	if err := s.ClearAnswer("q1"); err != util.ErrAttemptFrozen {
		t.Errorf("ClearAnswer after freeze: %v", err)
	}
	if err := s.Visit("q1"); err != util.ErrAttemptFrozen {
		t.Errorf("Visit after freeze: %v", err)
	}
	if err := s.ToggleMarkForReview("q1"); err != util.ErrAttemptFrozen {
		t.Errorf("ToggleMarkForReview after freeze: %v", err)
	}
	if err := s.AccumulateTime("q1", 5); err != util.ErrAttemptFrozen {
		t.Errorf("AccumulateTime after freeze: %v", err)
	}

	// 冻结前的数据原封不动
	if got := s.Answers()["q1"].Primary(); got != "A" {
		t.Errorf("frozen answer = %q, want A", got)
	}
}

func TestRestoreDropsUnknownQuestions(t *testing.T) {
	s := NewAnswerStore(paper())
	s.Restore(scoring.AnswerSet{
		"q1":    {Choice: "B"},
		"ghost": {Choice: "X"},
	}, map[string]int{"q1": 30, "ghost": 9})

	answers := s.Answers()
	if answers["q1"].Primary() != "B" {
		t.Errorf("q1 = %+v", answers["q1"])
	}
	if _, present := answers["ghost"]; present {
		t.Error("unknown question survived restore")
	}
	if _, present := s.TimeSpent()["ghost"]; present {
		t.Error("unknown question time survived restore")
	}
}

func TestSnapshotVersionTracksChanges(t *testing.T) {
	s := NewAnswerStore(paper())

	_, _, v0, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	_, _, again, _ := s.Snapshot()
	if again != v0 {
		t.Error("snapshot itself should not bump version")
	}

	s.SetAnswer("q1", "A")
	answers, times, v1, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if v1 == v0 {
		t.Error("mutation did not bump version")
	}
	if string(answers) != `{"q1":"A"}` {
		t.Errorf("answers snapshot = %s", answers)
	}
	if string(times) != `{}` {
		t.Errorf("times snapshot = %s", times)
	}
}

func TestNavigationOrderFollowsCatalog(t *testing.T) {
	s := NewAnswerStore(paper())
	s.Visit("q3")
	s.Visit("q1")
	s.ToggleMarkForReview("q3")
	s.ToggleMarkForReview("q2")

	nav := s.Navigation()
	if !reflect.DeepEqual(nav.Visited, []string{"q1", "q3"}) {
		t.Errorf("visited = %v, want catalog order [q1 q3]", nav.Visited)
	}
	if !reflect.DeepEqual(nav.MarkedForReview, []string{"q2", "q3"}) {
		t.Errorf("marked = %v, want catalog order [q2 q3]", nav.MarkedForReview)
	}
}
