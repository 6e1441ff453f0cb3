package scoring

import (
	"bytes"
	"encoding/json"
)

// AnswerValue 学生对一道题的原始作答：单选/数值题是字符串，多选题是
// 标签集合。序列化形态与持久化记录保持一致（字符串或字符串数组）。
type AnswerValue struct {
	Choice  string
	Choices []string
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	if a.Choices != nil {
		return json.Marshal(a.Choices)
	}
	return json.Marshal(a.Choice)
}

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		a.Choice = ""
		return json.Unmarshal(trimmed, &a.Choices)
	}
	a.Choices = nil
	return json.Unmarshal(trimmed, &a.Choice)
}

// IsEmpty 空作答与未作答同义，判分时一律按跳过处理
func (a AnswerValue) IsEmpty() bool {
	if a.Choices != nil {
		return len(a.Choices) == 0
	}
	return a.Choice == ""
}

// Primary 以字符串视角取值，用于单选与数值题
func (a AnswerValue) Primary() string {
	if a.Choice != "" {
		return a.Choice
	}
	if len(a.Choices) == 1 {
		return a.Choices[0]
	}
	return ""
}

// Labels 以集合视角取值，用于多选题
func (a AnswerValue) Labels() []string {
	if a.Choices != nil {
		return a.Choices
	}
	if a.Choice != "" {
		return []string{a.Choice}
	}
	return nil
}

// AnswerSet questionId -> 作答。键不存在即为跳过。
type AnswerSet map[string]AnswerValue

func ParseAnswerSet(raw []byte) (AnswerSet, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return AnswerSet{}, nil
	}
	var set AnswerSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, err
	}
	if set == nil {
		set = AnswerSet{}
	}
	return set, nil
}
