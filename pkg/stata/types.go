package stata

import (
	"errors"
	"fmt"
	"time"
)

// ErrFormat 表示文件不是可识别的 Stata dta 格式或内容损坏
var ErrFormat = errors.New("stata: invalid dta file")

func formatError(section string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrFormat, section)
	}
	return fmt.Errorf("%w: %s: %v", ErrFormat, section, err)
}

// Kind 是变量的存储类型
type Kind int

const (
	Byte Kind = iota
	Int
	Long
	Float
	Double
	Str
	StrL
)

func (k Kind) String() string {
	switch k {
	case Byte:
		return "byte"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Str:
		return "str"
	case StrL:
		return "strL"
	default:
		return "unknown"
	}
}

// Type 是变量的存储类型及定长字符串的长度
type Type struct {
	Kind Kind
	Len  int // 仅 Str 有效
}

// Width 返回该类型在数据区中占用的字节数
func (t Type) Width() int {
	switch t.Kind {
	case Byte:
		return 1
	case Int:
		return 2
	case Long, Float:
		return 4
	case Double, StrL:
		return 8
	case Str:
		return t.Len
	default:
		return 0
	}
}

func (t Type) String() string {
	if t.Kind == Str {
		return fmt.Sprintf("str%d", t.Len)
	}
	return t.Kind.String()
}

// Variable 描述一个变量（列）
type Variable struct {
	Name       string
	Type       Type
	Format     string
	Label      string
	ValueLabel string
}

// Opt 是一个显式的可选值，区分“不存在”和“零值”
type Opt[T any] struct {
	value T
	ok    bool
}

// Some 构造一个存在的可选值
func Some[T any](v T) Opt[T] { return Opt[T]{value: v, ok: true} }

// Get 返回值以及是否存在
func (o Opt[T]) Get() (T, bool) { return o.value, o.ok }

// Meta 是文件级元数据，转换核心不依赖这些字段
type Meta struct {
	DataLabel Opt[string]
	Timestamp Opt[time.Time]
}
