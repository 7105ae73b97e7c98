package converter

import (
	"fmt"
	"log"
	"sync"

	"github.com/liuzl/gocc"
)

// DefaultConfig 是 OpenCC 的简体到繁体配置
const DefaultConfig = "s2t"

// openCCConverter 是 TextConverter 的一个实现
type openCCConverter struct {
	converter *gocc.OpenCC
	logger    *log.Logger
	warnOnce  sync.Once
}

// NewOpenCCConverter 初始化并返回一个 OpenCC 转换器实例
func NewOpenCCConverter(config string, log *log.Logger) (TextConverter, error) {
	if config == "" {
		config = DefaultConfig
	}
	// s2t.json 代表 Simplified Chinese to Traditional Chinese
	converter, err := gocc.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenCC converter (%s): %w", config, err)
	}
	log.Printf("OpenCC converter (%s) initialized.", config)
	return &openCCConverter{converter: converter, logger: log}, nil
}

// NewTextConverter 总能返回一个可用的转换器：OpenCC 初始化失败时
// 打印一次警告并退化为原样输出，不影响整体转换
func NewTextConverter(config string, log *log.Logger) TextConverter {
	tc, err := NewOpenCCConverter(config, log)
	if err != nil {
		log.Printf("WARN: %v. Script conversion disabled, text is passed through unchanged.", err)
		return Passthrough()
	}
	return tc
}

// SimToTrad 将简体中文转换为繁体
func (c *openCCConverter) SimToTrad(text string) string {
	if c.converter == nil || text == "" {
		return text
	}
	out, err := c.converter.Convert(text)
	if err != nil {
		c.warnOnce.Do(func() {
			c.logger.Printf("WARN: Failed to convert text from Simplified to Traditional: %v. Using original text.", err)
		})
		return text // 在转换失败时返回原文
	}
	return out
}
