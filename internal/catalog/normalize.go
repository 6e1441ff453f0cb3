package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// rawOption 选项在存储里的对象形态，字段名历史上不统一
type rawOption struct {
	Label    string `json:"label"`
	Text     string `json:"text"`
	Image    string `json:"image"`
	ImageRef string `json:"imageRef"`
	ImageURL string `json:"imageUrl"`
}

func (r rawOption) toOption(fallbackLabel string) Option {
	opt := Option{Label: r.Label, Text: r.Text, ImageRef: r.ImageRef}
	if opt.ImageRef == "" {
		opt.ImageRef = r.Image
	}
	if opt.ImageRef == "" {
		opt.ImageRef = r.ImageURL
	}
	if opt.Label == "" {
		opt.Label = fallbackLabel
	}
	return opt
}

// NormalizeOptions 把存储中的选项统一成有序序列。支持两种历史形态：
//   - 数组：元素是字符串或 {label,text,image} 对象
//   - 键值对象：{"A": "...", "B": {...}}，按文档中的键出现顺序展开，键即 label
//
// 两条路径产出完全一致的形态，下游不感知来源差异。
func NormalizeOptions(raw json.RawMessage) []Option {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '[':
		return optionsFromArray(trimmed)
	case '{':
		return optionsFromObject(trimmed)
	default:
		return nil
	}
}

func optionsFromArray(raw []byte) []Option {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}

	opts := make([]Option, 0, len(elems))
	for i, el := range elems {
		opts = append(opts, optionFromValue(el, indexLabel(i)))
	}
	return opts
}

// optionsFromObject 键值对象形态。encoding/json 的 map 不保留键序，
// 这里用 Decoder 按 token 流走一遍，保证拿到文档顺序。
func optionsFromObject(raw []byte) []Option {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil { // '{'
		return nil
	}

	var opts []Option
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return opts
		}
		key, ok := keyTok.(string)
		if !ok {
			return opts
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return opts
		}
		opt := optionFromValue(val, key)
		opt.Label = key
		opts = append(opts, opt)
	}
	return opts
}

func optionFromValue(raw json.RawMessage, fallbackLabel string) Option {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var ro rawOption
		if err := json.Unmarshal(trimmed, &ro); err == nil {
			return ro.toOption(fallbackLabel)
		}
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return Option{Label: fallbackLabel, Text: s}
	}
	// 数字等标量兜底为文本
	return Option{Label: fallbackLabel, Text: string(trimmed)}
}

func indexLabel(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return strconv.Itoa(i + 1)
}

// NormalizeType 题目自身类型缺失或不认识时退回节类型，再不行按单选处理
func NormalizeType(questionType, sectionType string) QuestionType {
	if t, ok := knownType(questionType); ok {
		return t
	}
	if t, ok := knownType(sectionType); ok {
		return t
	}
	return SingleChoice
}

func knownType(s string) (QuestionType, bool) {
	switch QuestionType(strings.TrimSpace(strings.ToLower(s))) {
	case SingleChoice:
		return SingleChoice, true
	case MultipleChoice:
		return MultipleChoice, true
	case Integer:
		return Integer, true
	}
	return "", false
}

// applyCorrectAnswer 按题型解出正确答案。存储形态同样不统一：
// 单选可能是 "B" 或 ["B"]，多选可能是数组或单个字符串，数值题可能是
// 字符串也可能是 JSON number。
func applyCorrectAnswer(q *Question, raw json.RawMessage) {
	labels := answerLabels(raw)

	switch q.Type {
	case SingleChoice:
		if len(labels) > 0 {
			q.CorrectChoice = labels[0]
		}
	case MultipleChoice:
		q.CorrectChoices = labels
	case Integer:
		if len(labels) > 0 {
			q.CorrectValue = labels[0]
		}
	}
}

// answerLabels 把任意历史形态的 correctAnswer 展开成字符串序列
func answerLabels(raw json.RawMessage) []string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var single string
	if err := json.Unmarshal(trimmed, &single); err == nil {
		single = strings.TrimSpace(single)
		if single == "" {
			return nil
		}
		return []string{single}
	}

	var many []string
	if err := json.Unmarshal(trimmed, &many); err == nil {
		out := make([]string, 0, len(many))
		for _, s := range many {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	var num json.Number
	if err := json.Unmarshal(trimmed, &num); err == nil {
		return []string{num.String()}
	}

	return nil
}
