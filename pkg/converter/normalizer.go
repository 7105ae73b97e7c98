package converter

import (
	"strings"

	"github.com/yleoer/stataconv/pkg/table"
)

// Fixup 是通用繁简转换之后执行的一条字面替换规则
type Fixup struct {
	From string
	To   string
}

// DefaultFixups 把“舉人”的两种旧写法统一为规范写法
var DefaultFixups = []Fixup{
	{From: "举人", To: "舉人"},
	{From: "擧人", To: "舉人"},
}

// Normalizer 先做繁简转换，再应用字面替换规则。
// 顺序固定：替换规则放在后面，通用转换不会再把旧写法带回来。
type Normalizer struct {
	converter TextConverter
	fixups    *strings.Replacer
}

// NewNormalizer 创建 Normalizer；未传入规则时使用 DefaultFixups
func NewNormalizer(tc TextConverter, fixups ...Fixup) *Normalizer {
	if tc == nil {
		tc = Passthrough()
	}
	if len(fixups) == 0 {
		fixups = DefaultFixups
	}
	pairs := make([]string, 0, len(fixups)*2)
	for _, f := range fixups {
		if f.From == "" {
			continue
		}
		pairs = append(pairs, f.From, f.To)
	}
	return &Normalizer{converter: tc, fixups: strings.NewReplacer(pairs...)}
}

// Normalize 规范化一段文本
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return text
	}
	if !isASCII(text) {
		text = n.converter.SimToTrad(text)
	}
	return n.fixups.Replace(text)
}

// NormalizeTable 原地规范化表头和所有单元格。
// 同一张表里重复值很多（旗分、出身等），按值缓存转换结果。
func (n *Normalizer) NormalizeTable(t *table.Table) {
	cache := make(map[string]string)
	normalize := func(s string) string {
		if s == "" {
			return s
		}
		if out, ok := cache[s]; ok {
			return out
		}
		out := n.Normalize(s)
		cache[s] = out
		return out
	}

	for i, c := range t.Columns {
		t.Columns[i] = normalize(c)
	}
	for _, row := range t.Rows {
		for i, v := range row {
			row[i] = normalize(v)
		}
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
