package catalog

// QuestionType 归一化后的作答类型
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	Integer        QuestionType = "integer"
)

// DefaultSubject 题目缺失科目归类时的兜底分桶
const DefaultSubject = "General"

// Option 归一化后的选项。ImageRef 是对象存储里的键，出库时再换成预签名 URL。
type Option struct {
	Label    string `json:"label"`
	Text     string `json:"text"`
	ImageRef string `json:"imageRef,omitempty"`
}

// Question 归一化后的可判分题目。无论来自规范化题库还是旧版扁平结构，
// 下游（会话、判分）只消费这一种形态。
type Question struct {
	ID             string       `json:"id"`
	Number         int          `json:"questionNumber"` // 节内 1 起始
	Type           QuestionType `json:"type"`
	Content        string       `json:"content"`
	Options        []Option     `json:"options,omitempty"`
	CorrectChoice  string       `json:"-"` // single_choice
	CorrectChoices []string     `json:"-"` // multiple_choice
	CorrectValue   string       `json:"-"` // integer（数值字符串）
	Marks          int          `json:"marks"`
	NegativeMarks  int          `json:"negativeMarks"`
	IsBonus        bool         `json:"isBonus"`
	Subject        string       `json:"subject"`
	Chapter        string       `json:"chapter,omitempty"`
	Topic          string       `json:"topic,omitempty"`
	SectionName    string       `json:"sectionName,omitempty"`
}
