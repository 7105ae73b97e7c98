package stata

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"
)

// 各数值类型可表示的最大非缺失值，超过即为 . 或 .a-.z
const (
	maxByte  = 100
	maxInt   = 32740
	maxLong  = 2147483620
	maxFloat = 0x7effffff         // float32 位模式
	maxDbl   = 0x7fdfffffffffffff // float64 位模式
)

var stataEpoch = time.Date(1960, time.January, 1, 0, 0, 0, 0, time.UTC)

// cellFunc 把一个单元格的原始字节渲染为文本，缺失值返回空串
type cellFunc func(raw []byte) string

// numberFunc 返回某一数值类型的值读取函数，ok=false 表示缺失值
func numberFunc(t Type, order binary.ByteOrder) func(raw []byte) (v float64, integral bool, ok bool) {
	switch t.Kind {
	case Byte:
		return func(raw []byte) (float64, bool, bool) {
			v := int8(raw[0])
			return float64(v), true, v <= maxByte
		}
	case Int:
		return func(raw []byte) (float64, bool, bool) {
			v := int16(order.Uint16(raw))
			return float64(v), true, v <= maxInt
		}
	case Long:
		return func(raw []byte) (float64, bool, bool) {
			v := int32(order.Uint32(raw))
			return float64(v), true, v <= maxLong
		}
	case Float:
		return func(raw []byte) (float64, bool, bool) {
			bits := order.Uint32(raw)
			f := math.Float32frombits(bits)
			if math.IsNaN(float64(f)) || (bits&0x80000000 == 0 && bits > maxFloat) {
				return 0, false, false
			}
			return float64(f), false, true
		}
	case Double:
		return func(raw []byte) (float64, bool, bool) {
			bits := order.Uint64(raw)
			f := math.Float64frombits(bits)
			if math.IsNaN(f) || (bits&0x8000000000000000 == 0 && bits > maxDbl) {
				return 0, false, false
			}
			return f, false, true
		}
	}
	return nil
}

// numericCell 构造数值列的渲染函数，按显示格式处理日期
func numericCell(v Variable, order binary.ByteOrder) cellFunc {
	read := numberFunc(v.Type, order)
	bitSize := 64
	if v.Type.Kind == Float {
		bitSize = 32
	}
	dateKind := dateFormatKind(v.Format)

	return func(raw []byte) string {
		f, integral, ok := read(raw)
		if !ok {
			return ""
		}
		switch dateKind {
		case 'd':
			return stataEpoch.AddDate(0, 0, int(math.Floor(f))).Format("2006-01-02")
		case 'c':
			return stataEpoch.Add(time.Duration(f) * time.Millisecond).Format("2006-01-02 15:04:05")
		}
		if integral {
			return strconv.FormatInt(int64(f), 10)
		}
		return formatFloat(f, bitSize)
	}
}

// dateFormatKind 返回 'd'（%td 日期）、'c'（%tc/%tC 时间戳）或 0
func dateFormatKind(format string) byte {
	switch {
	case strings.HasPrefix(format, "%td"), strings.HasPrefix(format, "%d"):
		return 'd'
	case strings.HasPrefix(format, "%tc"), strings.HasPrefix(format, "%tC"):
		return 'c'
	}
	return 0
}

// formatFloat 使用能往返还原的最短十进制表示，极大或极小的数用科学计数法
func formatFloat(f float64, bitSize int) string {
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'g', -1, bitSize)
	}
	return strconv.FormatFloat(f, 'f', -1, bitSize)
}
