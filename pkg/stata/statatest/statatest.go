// Package statatest 生成测试用的 .dta 文件
package statatest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/yleoer/stataconv/pkg/stata"
)

// Var 描述一个待写入的变量
type Var struct {
	Name   string
	Kind   stata.Kind
	Len    int // Str 的定长
	Format string
	Label  string
	Binary bool // StrL 以二进制 GSO（类型 129）写出
}

// Dataset 是待写入的数据集。Rows 中的值：字符串列用 string，
// 整数列用 int64，浮点列用 float64，nil 表示缺失。
type Dataset struct {
	Release   int // 114、117、118 或 119，默认 118
	ByteOrder binary.ByteOrder
	Label     string
	Vars      []Var
	Rows      [][]any

	// Encode 把文本转换为文件中的字节，默认原样写入 UTF-8
	Encode func(string) []byte
}

// Strings 构造一个全部为定长字符串列的数据集
func Strings(columns []string, rows [][]string) Dataset {
	ds := Dataset{Release: 118}
	for i, c := range columns {
		width := 1
		for _, r := range rows {
			if len(r[i]) > width {
				width = len(r[i])
			}
		}
		ds.Vars = append(ds.Vars, Var{Name: c, Kind: stata.Str, Len: width, Format: fmt.Sprintf("%%%ds", width)})
	}
	for _, r := range rows {
		row := make([]any, len(r))
		for i, v := range r {
			row[i] = v
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

// WriteFile 把数据集写成 .dta 文件
func WriteFile(path string, ds Dataset) error {
	b, err := Bytes(ds)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Bytes 把数据集编码为 .dta 字节
func Bytes(ds Dataset) ([]byte, error) {
	if ds.Release == 0 {
		ds.Release = 118
	}
	if ds.ByteOrder == nil {
		ds.ByteOrder = binary.LittleEndian
	}
	if ds.Encode == nil {
		ds.Encode = func(s string) []byte { return []byte(s) }
	}
	for i, r := range ds.Rows {
		if len(r) != len(ds.Vars) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(r), len(ds.Vars))
		}
	}
	switch ds.Release {
	case 114:
		return legacy(ds)
	case 117, 118, 119:
		return tagged(ds)
	}
	return nil, fmt.Errorf("unsupported release %d", ds.Release)
}

type writer struct {
	bytes.Buffer
	order binary.ByteOrder
	enc   func(string) []byte
}

func (w *writer) u8(v uint8) { w.WriteByte(v) }

func (w *writer) u16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.Write(b[:])
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.Write(b[:])
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.Write(b[:])
}

// fixed 写入 NUL 填充到 width 的文本
func (w *writer) fixed(s string, width int) {
	b := w.enc(s)
	if len(b) > width {
		b = b[:width]
	}
	w.Write(b)
	w.Write(make([]byte, width-len(b)))
}

func (w *writer) value(v Var, x any, strl func()) error {
	switch v.Kind {
	case stata.Str:
		s, _ := x.(string)
		w.fixed(s, v.Len)
	case stata.StrL:
		strl()
	case stata.Byte:
		n, ok := x.(int64)
		if !ok {
			n = 101
		}
		w.u8(uint8(int8(n)))
	case stata.Int:
		n, ok := x.(int64)
		if !ok {
			n = 32741
		}
		w.u16(uint16(int16(n)))
	case stata.Long:
		n, ok := x.(int64)
		if !ok {
			n = 2147483621
		}
		w.u32(uint32(int32(n)))
	case stata.Float:
		if f, ok := x.(float64); ok {
			w.u32(math.Float32bits(float32(f)))
		} else {
			w.u32(0x7f000000)
		}
	case stata.Double:
		if f, ok := x.(float64); ok {
			w.u64(math.Float64bits(f))
		} else {
			w.u64(0x7fe0000000000000)
		}
	default:
		return fmt.Errorf("unsupported kind %v", v.Kind)
	}
	return nil
}

func legacyCode(v Var) (byte, error) {
	switch v.Kind {
	case stata.Str:
		return byte(v.Len), nil
	case stata.Byte:
		return 251, nil
	case stata.Int:
		return 252, nil
	case stata.Long:
		return 253, nil
	case stata.Float:
		return 254, nil
	case stata.Double:
		return 255, nil
	}
	return 0, fmt.Errorf("kind %v not available in release 114", v.Kind)
}

func legacy(ds Dataset) ([]byte, error) {
	w := &writer{order: ds.ByteOrder, enc: ds.Encode}
	w.u8(114)
	if ds.ByteOrder == binary.BigEndian {
		w.u8(1)
	} else {
		w.u8(2)
	}
	w.u8(1)
	w.u8(0)
	w.u16(uint16(len(ds.Vars)))
	w.u32(uint32(len(ds.Rows)))
	w.fixed(ds.Label, 81)
	w.fixed("01 Jan 2024 09:30", 18)
	for _, v := range ds.Vars {
		code, err := legacyCode(v)
		if err != nil {
			return nil, err
		}
		w.u8(code)
	}
	for _, v := range ds.Vars {
		w.fixed(v.Name, 33)
	}
	w.Write(make([]byte, 2*(len(ds.Vars)+1)))
	for _, v := range ds.Vars {
		w.fixed(v.Format, 49)
	}
	for range ds.Vars {
		w.fixed("", 33)
	}
	for _, v := range ds.Vars {
		w.fixed(v.Label, 81)
	}
	w.u8(0)
	w.u32(0)
	for _, row := range ds.Rows {
		for i, v := range ds.Vars {
			if err := w.value(v, row[i], nil); err != nil {
				return nil, err
			}
		}
	}
	return w.Bytes(), nil
}

func taggedCode(v Var) uint16 {
	switch v.Kind {
	case stata.Str:
		return uint16(v.Len)
	case stata.StrL:
		return 32768
	case stata.Double:
		return 65526
	case stata.Float:
		return 65527
	case stata.Long:
		return 65528
	case stata.Int:
		return 65529
	default:
		return 65530
	}
}

func tagged(ds Dataset) ([]byte, error) {
	w := &writer{order: ds.ByteOrder, enc: ds.Encode}
	is117 := ds.Release == 117
	nameLen, fmtLen, varLabelLen := 129, 57, 321
	if is117 {
		nameLen, fmtLen, varLabelLen = 33, 49, 81
	}

	var offsets [14]uint64
	mark := func(i int) { offsets[i] = uint64(w.Len()) }

	mark(0)
	w.WriteString("<stata_dta><header><release>")
	fmt.Fprintf(w, "%d", ds.Release)
	w.WriteString("</release><byteorder>")
	if ds.ByteOrder == binary.BigEndian {
		w.WriteString("MSF")
	} else {
		w.WriteString("LSF")
	}
	w.WriteString("</byteorder><K>")
	if ds.Release == 119 {
		w.u32(uint32(len(ds.Vars)))
	} else {
		w.u16(uint16(len(ds.Vars)))
	}
	w.WriteString("</K><N>")
	if is117 {
		w.u32(uint32(len(ds.Rows)))
	} else {
		w.u64(uint64(len(ds.Rows)))
	}
	w.WriteString("</N><label>")
	label := w.enc(ds.Label)
	if is117 {
		w.u8(uint8(len(label)))
	} else {
		w.u16(uint16(len(label)))
	}
	w.Write(label)
	w.WriteString("</label><timestamp>")
	w.u8(17)
	w.WriteString("01 Jan 2024 09:30")
	w.WriteString("</timestamp></header>")

	mark(1)
	w.WriteString("<map>")
	mapAt := w.Len()
	w.Write(make([]byte, 14*8))
	w.WriteString("</map>")

	mark(2)
	w.WriteString("<variable_types>")
	for _, v := range ds.Vars {
		w.u16(taggedCode(v))
	}
	w.WriteString("</variable_types>")

	fixedSection := func(idx int, tag string, width int, get func(Var) string) {
		mark(idx)
		w.WriteString("<" + tag + ">")
		for _, v := range ds.Vars {
			w.fixed(get(v), width)
		}
		w.WriteString("</" + tag + ">")
	}
	fixedSection(3, "varnames", nameLen, func(v Var) string { return v.Name })
	mark(4)
	w.WriteString("<sortlist>")
	w.Write(make([]byte, 2*(len(ds.Vars)+1)))
	w.WriteString("</sortlist>")
	fixedSection(5, "formats", fmtLen, func(v Var) string { return v.Format })
	fixedSection(6, "value_label_names", nameLen, func(Var) string { return "" })
	fixedSection(7, "variable_labels", varLabelLen, func(v Var) string { return v.Label })
	mark(8)
	w.WriteString("<characteristics></characteristics>")

	type gso struct {
		v, o uint64
		s    string
		bin  bool
	}
	var gsos []gso
	mark(9)
	w.WriteString("<data>")
	for o, row := range ds.Rows {
		for i, v := range ds.Vars {
			vi, oi := uint64(i+1), uint64(o+1)
			err := w.value(v, row[i], func() {
				s, ok := row[i].(string)
				switch {
				case !ok || s == "":
					w.u64(0)
					return
				case is117:
					w.u32(uint32(vi))
					w.u32(uint32(oi))
				case ds.Release == 119:
					w.u64(vi | oi<<24)
				default:
					w.u64(vi | oi<<16)
				}
				gsos = append(gsos, gso{v: vi, o: oi, s: s, bin: v.Binary})
			})
			if err != nil {
				return nil, err
			}
		}
	}
	w.WriteString("</data>")

	mark(10)
	w.WriteString("<strls>")
	for _, g := range gsos {
		w.WriteString("GSO")
		w.u32(uint32(g.v))
		if is117 {
			w.u32(uint32(g.o))
		} else {
			w.u64(g.o)
		}
		if g.bin {
			w.u8(129)
			w.u32(uint32(len(g.s)))
			w.WriteString(g.s)
			continue
		}
		w.u8(130)
		b := append(w.enc(g.s), 0)
		w.u32(uint32(len(b)))
		w.Write(b)
	}
	w.WriteString("</strls>")
	mark(11)
	w.WriteString("<value_labels></value_labels>")
	mark(12)
	w.WriteString("</stata_dta>")
	mark(13)

	out := w.Bytes()
	for i, off := range offsets {
		ds.ByteOrder.PutUint64(out[mapAt+i*8:], off)
	}
	return out, nil
}
