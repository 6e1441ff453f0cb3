package model

import "encoding/json"

// Course 科目（Physics / Chemistry / Mathematics …），题目归类的顶层
type Course struct {
	BaseModel
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
}

func (Course) TableName() string {
	return "courses"
}

type Chapter struct {
	BaseModel
	CourseID uint    `gorm:"index;type:bigint unsigned" json:"courseId"`
	Course   *Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Name     string  `gorm:"size:100;not null" json:"name"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// Question 题库题目（规范化存储）。Options 可能是数组，也可能是历史数据
// 遗留的键值对象，统一在 catalog 层归一化。
// swagger:model Question
type Question struct {
	BaseModel
	ChapterID     uint            `gorm:"index;type:bigint unsigned" json:"chapterId"`
	Chapter       *Chapter        `gorm:"foreignKey:ChapterID" json:"chapter,omitempty"`
	QuestionType  string          `gorm:"size:50;not null" json:"questionType"` // single_choice | multiple_choice | integer
	Content       string          `gorm:"type:text;not null" json:"content"`
	Options       json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswer json.RawMessage `gorm:"type:json" json:"correctAnswer,omitempty"`
	Marks         int             `gorm:"default:4" json:"marks"`
	NegativeMarks int             `gorm:"default:0" json:"negativeMarks"`
	IsBonus       bool            `gorm:"default:false" json:"isBonus"`
	Topic         string          `gorm:"size:100" json:"topic"`
	Explanation   string          `gorm:"type:text" json:"explanation"`
}

func (Question) TableName() string {
	return "questions"
}
