package converter

// TextConverter 定义文本转换器接口
type TextConverter interface {
	SimToTrad(text string) string // 将简体中文转换为繁体
}

// passthrough 在 OpenCC 不可用时原样返回文本
type passthrough struct{}

func (passthrough) SimToTrad(text string) string { return text }

// Passthrough 返回一个不做任何转换的 TextConverter
func Passthrough() TextConverter { return passthrough{} }
