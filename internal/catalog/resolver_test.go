package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"phynetix_backend/internal/util"
)

type fakeStore struct {
	questionRows []QuestionRow
	sectionRows  []SectionRow
	questionErr  error
	sectionErr   error

	sectionCalls int
}

func (f *fakeStore) QuestionRows(context.Context, uint) ([]QuestionRow, error) {
	return f.questionRows, f.questionErr
}

func (f *fakeStore) SectionRows(context.Context, uint) ([]SectionRow, error) {
	f.sectionCalls++
	return f.sectionRows, f.sectionErr
}

func TestResolvePrefersNormalizedCatalog(t *testing.T) {
	store := &fakeStore{
		questionRows: []QuestionRow{
			{QuestionID: 12, Order: 2, QuestionType: "integer", CorrectAnswer: json.RawMessage(`"7"`), Marks: 4, Subject: "Physics"},
			{QuestionID: 11, Order: 1, QuestionType: "single_choice", CorrectAnswer: json.RawMessage(`"B"`), Marks: 4, Subject: "Physics"},
		},
		sectionRows: []SectionRow{{RowID: 99}},
	}

	questions, err := NewResolver(store).Resolve(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if store.sectionCalls != 0 {
		t.Error("fell through to legacy rows despite normalized catalog hit")
	}
	if len(questions) != 2 {
		t.Fatalf("got %d questions", len(questions))
	}
	// Order 字段决定顺序，不是行返回顺序
	if questions[0].ID != "11" || questions[1].ID != "12" {
		t.Errorf("order = [%s %s], want [11 12]", questions[0].ID, questions[1].ID)
	}
	if questions[0].CorrectChoice != "B" {
		t.Errorf("correctChoice = %q", questions[0].CorrectChoice)
	}
	if questions[1].CorrectValue != "7" {
		t.Errorf("correctValue = %q", questions[1].CorrectValue)
	}
}

func TestResolveSectionNumbering(t *testing.T) {
	// 同科目同节类型连续编号，换类型重新从 1 起
	store := &fakeStore{
		questionRows: []QuestionRow{
			{QuestionID: 1, Order: 1, QuestionType: "single_choice", Subject: "Physics"},
			{QuestionID: 2, Order: 2, QuestionType: "single_choice", Subject: "Physics"},
			{QuestionID: 3, Order: 3, QuestionType: "integer", Subject: "Physics"},
			{QuestionID: 4, Order: 4, QuestionType: "single_choice", Subject: "Chemistry"},
		},
	}

	questions, err := NewResolver(store).Resolve(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	wantNumbers := []int{1, 2, 1, 1}
	for i, q := range questions {
		if q.Number != wantNumbers[i] {
			t.Errorf("question %s number = %d, want %d", q.ID, q.Number, wantNumbers[i])
		}
	}
}

func TestResolveFallsBackToLegacySections(t *testing.T) {
	store := &fakeStore{
		sectionRows: []SectionRow{
			{RowID: 5, SubjectName: "Physics", SubjectOrder: 1, SectionOrder: 2, QuestionNumber: 1, QuestionType: "integer", CorrectAnswer: json.RawMessage(`3`)},
			{RowID: 3, SubjectName: "Physics", SubjectOrder: 1, SectionOrder: 1, QuestionNumber: 2, SectionType: "single_choice"},
			{RowID: 2, SubjectName: "Physics", SubjectOrder: 1, SectionOrder: 1, QuestionNumber: 1, SectionType: "single_choice", CorrectAnswer: json.RawMessage(`"A"`)},
		},
	}

	questions, err := NewResolver(store).Resolve(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(questions) != 3 {
		t.Fatalf("got %d questions", len(questions))
	}
	// 科目序 → 节序 → 节内题号
	wantIDs := []string{"s2", "s3", "s5"}
	for i, q := range questions {
		if q.ID != wantIDs[i] {
			t.Errorf("position %d: id = %s, want %s", i, q.ID, wantIDs[i])
		}
	}
	// 行缺题型时退回节类型
	if questions[1].Type != SingleChoice {
		t.Errorf("type = %s, want single_choice from section type", questions[1].Type)
	}
	if questions[2].CorrectValue != "3" {
		t.Errorf("correctValue = %q", questions[2].CorrectValue)
	}
}

func TestResolveNoQuestionsAnywhere(t *testing.T) {
	_, err := NewResolver(&fakeStore{}).Resolve(context.Background(), 1)
	if !errors.Is(err, util.ErrNoQuestions) {
		t.Errorf("err = %v, want ErrNoQuestions", err)
	}
}

func TestResolveSubjectDefaulting(t *testing.T) {
	store := &fakeStore{
		questionRows: []QuestionRow{{QuestionID: 1, Order: 1, QuestionType: "single_choice"}},
	}
	questions, err := NewResolver(store).Resolve(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if questions[0].Subject != DefaultSubject {
		t.Errorf("subject = %q, want %q", questions[0].Subject, DefaultSubject)
	}
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	if _, err := NewResolver(&fakeStore{questionErr: boom}).Resolve(context.Background(), 1); !errors.Is(err, boom) {
		t.Errorf("question rows err = %v", err)
	}
	if _, err := NewResolver(&fakeStore{sectionErr: boom}).Resolve(context.Background(), 1); !errors.Is(err, boom) {
		t.Errorf("section rows err = %v", err)
	}
}
