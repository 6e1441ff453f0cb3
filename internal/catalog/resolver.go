package catalog

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"phynetix_backend/internal/util"
)

// QuestionRow 规范化路径（tier 2）的一行：试卷有序题目引用 join 题库定义，
// 科目/章节通过 chapter→course 关联得出。
type QuestionRow struct {
	QuestionID    uint
	Order         int
	SectionType   string
	QuestionType  string
	Content       string
	Options       json.RawMessage
	CorrectAnswer json.RawMessage
	Marks         int
	NegativeMarks int
	IsBonus       bool
	Subject       string
	Chapter       string
	Topic         string
}

// SectionRow 旧版扁平路径（tier 3）的一行，自包含全部判分信息
type SectionRow struct {
	RowID          uint
	SubjectName    string
	SubjectOrder   int
	SectionName    string
	SectionType    string
	SectionOrder   int
	QuestionNumber int
	QuestionType   string
	Content        string
	Options        json.RawMessage
	CorrectAnswer  json.RawMessage
	Marks          int
	NegativeMarks  int
	IsBonus        bool
	Chapter        string
	Topic          string
}

// Store 目录解析依赖的数据访问面，由 repository 层实现
type Store interface {
	QuestionRows(ctx context.Context, testID uint) ([]QuestionRow, error)
	SectionRows(ctx context.Context, testID uint) ([]SectionRow, error)
}

type Resolver struct {
	Store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{Store: store}
}

// Resolve 给出试卷的归一化题目清单，按科目、节、节内序号排序。
// 先走规范化题库关联，查不到再退回旧版扁平结构；两条路径产出同一形态。
// 试卷没有任何可判分内容时返回 util.ErrNoQuestions。
func (r *Resolver) Resolve(ctx context.Context, testID uint) ([]Question, error) {
	rows, err := r.Store.QuestionRows(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return fromQuestionRows(rows), nil
	}

	legacy, err := r.Store.SectionRows(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(legacy) > 0 {
		return fromSectionRows(legacy), nil
	}

	return nil, util.ErrNoQuestions
}

func fromQuestionRows(rows []QuestionRow) []Question {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Order < rows[j].Order
	})

	// 节内序号：同一科目下同一节类型连续编号
	type sectionKey struct {
		subject string
		stype   string
	}
	counters := make(map[sectionKey]int)

	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		q := Question{
			ID:            strconv.FormatUint(uint64(row.QuestionID), 10),
			Type:          NormalizeType(row.QuestionType, row.SectionType),
			Content:       row.Content,
			Options:       NormalizeOptions(row.Options),
			Marks:         row.Marks,
			NegativeMarks: row.NegativeMarks,
			IsBonus:       row.IsBonus,
			Subject:       subjectOrDefault(row.Subject),
			Chapter:       row.Chapter,
			Topic:         row.Topic,
		}
		key := sectionKey{subject: q.Subject, stype: string(q.Type)}
		counters[key]++
		q.Number = counters[key]
		applyCorrectAnswer(&q, row.CorrectAnswer)
		out = append(out, q)
	}
	return out
}

func fromSectionRows(rows []SectionRow) []Question {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.SubjectOrder != b.SubjectOrder {
			return a.SubjectOrder < b.SubjectOrder
		}
		if a.SectionOrder != b.SectionOrder {
			return a.SectionOrder < b.SectionOrder
		}
		return a.QuestionNumber < b.QuestionNumber
	})

	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		q := Question{
			ID:            "s" + strconv.FormatUint(uint64(row.RowID), 10),
			Number:        row.QuestionNumber,
			Type:          NormalizeType(row.QuestionType, row.SectionType),
			Content:       row.Content,
			Options:       NormalizeOptions(row.Options),
			Marks:         row.Marks,
			NegativeMarks: row.NegativeMarks,
			IsBonus:       row.IsBonus,
			Subject:       subjectOrDefault(row.SubjectName),
			Chapter:       row.Chapter,
			Topic:         row.Topic,
			SectionName:   row.SectionName,
		}
		applyCorrectAnswer(&q, row.CorrectAnswer)
		out = append(out, q)
	}
	return out
}

func subjectOrDefault(s string) string {
	if s == "" {
		return DefaultSubject
	}
	return s
}
