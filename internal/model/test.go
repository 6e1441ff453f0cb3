package model

import (
	"encoding/json"
	"time"
)

// Test 一套可供学生作答的试卷
// swagger:model Test
type Test struct {
	BaseModel
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	DurationMinutes int        `gorm:"default:0" json:"durationMinutes"`
	IsPublished     bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
}

func (Test) TableName() string {
	return "tests"
}

// TestQuestion 试卷与题库题目的有序关联（规范化存储，新试卷走这条路径）
type TestQuestion struct {
	BaseModel
	TestID      uint      `gorm:"index;type:bigint unsigned" json:"testId"`
	QuestionID  uint      `gorm:"index;type:bigint unsigned" json:"questionId"`
	Question    *Question `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
	Order       int       `gorm:"default:0" json:"order"`
	SectionType string    `gorm:"size:50" json:"sectionType"` // 题目自身类型缺失时的兜底
}

func (TestQuestion) TableName() string {
	return "test_questions"
}

// TestSubject 旧版扁平结构：试卷下的科目
type TestSubject struct {
	BaseModel
	TestID uint   `gorm:"index;type:bigint unsigned" json:"testId"`
	Name   string `gorm:"size:100;not null" json:"name"`
	Order  int    `gorm:"default:0" json:"order"`
}

func (TestSubject) TableName() string {
	return "test_subjects"
}

// TestSection 旧版扁平结构：科目下同一作答类型的题组
type TestSection struct {
	BaseModel
	SubjectID   uint   `gorm:"index;type:bigint unsigned" json:"subjectId"`
	Name        string `gorm:"size:100" json:"name"`
	SectionType string `gorm:"size:50;not null" json:"sectionType"` // single_choice | multiple_choice | integer
	Order       int    `gorm:"default:0" json:"order"`
}

func (TestSection) TableName() string {
	return "test_sections"
}

// SectionQuestion 旧版扁平结构的自包含题目行：正确答案直接挂在行上，
// 不关联题库，选项可能是数组也可能是键值对象。
type SectionQuestion struct {
	BaseModel
	SectionID      uint            `gorm:"index;type:bigint unsigned" json:"sectionId"`
	QuestionNumber int             `gorm:"default:0" json:"questionNumber"` // 节内 1 起始序号
	QuestionType   string          `gorm:"size:50" json:"questionType"`     // 可能为空，以节类型兜底
	Content        string          `gorm:"type:text" json:"content"`
	Options        json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswer  json.RawMessage `gorm:"type:json" json:"correctAnswer,omitempty"`
	Marks          int             `gorm:"default:0" json:"marks"`
	NegativeMarks  int             `gorm:"default:0" json:"negativeMarks"`
	IsBonus        bool            `gorm:"default:false" json:"isBonus"`
	ChapterName    string          `gorm:"size:100" json:"chapterName"`
	TopicName      string          `gorm:"size:100" json:"topicName"`
}

func (SectionQuestion) TableName() string {
	return "section_questions"
}
