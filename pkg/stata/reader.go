// Package stata 读取 Stata .dta 数据文件（release 113-115 与 117-119）。
//
// 所有单元格都被渲染为文本：整数按十进制，浮点数用最短的往返表示，
// 缺失值为空串，%td/%tc 格式的列渲染为日期/时间。
package stata

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"

	"github.com/yleoer/stataconv/pkg/table"
	"github.com/yleoer/stataconv/pkg/util"
)

// Options 控制读取行为
type Options struct {
	// LegacyEncoding 用于解码 release 117 及更早版本中的非 UTF-8 文本，
	// nil 表示按 UTF-8 处理。release 118 起文件本身就是 UTF-8。
	LegacyEncoding encoding.Encoding
}

// File 是读取后的数据集
type File struct {
	Release   int
	Meta      Meta
	Variables []Variable
	Table     *table.Table
}

// ReadFile 打开并读取一个 .dta 文件
func ReadFile(path string, opts Options) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	df, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return df, nil
}

// Read 从 src 读取一个 .dta 数据集
func Read(src io.ReadSeeker, opts Options) (*File, error) {
	d := &decoder{r: newBinReader(src), enc: opts.LegacyEncoding, file: &File{}}
	head, err := d.r.peek(1)
	if err != nil {
		return nil, formatError("header", err)
	}
	if head[0] == '<' {
		err = d.readTagged()
	} else {
		err = d.readLegacy()
	}
	if err != nil {
		return nil, err
	}
	return d.file, nil
}

// Stata MP 最多 120000 个变量
const maxVariables = 1 << 20

type decoder struct {
	r    *binReader
	enc  encoding.Encoding
	file *File

	nobs  uint64
	strls map[strlKey]string
}

// text 把定长、以 NUL 结尾的字节解码为 UTF-8
func (d *decoder) text(b []byte) string {
	b = cstring(b)
	if len(b) == 0 {
		return ""
	}
	if d.file.Release >= 118 {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	s, err := util.DecodeText(b, d.enc)
	if err != nil {
		return string(b)
	}
	return s
}

func (d *decoder) setTimestamp(raw string) {
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return
	}
	if ts, err := time.Parse("2 Jan 2006 15:04", raw); err == nil {
		d.file.Meta.Timestamp = Some(ts)
	}
}

func (d *decoder) setDataLabel(b []byte) {
	if s := strings.TrimSpace(d.text(b)); s != "" {
		d.file.Meta.DataLabel = Some(s)
	}
}

// readTagged 解析 release 117-119 的标签式布局
func (d *decoder) readTagged() error {
	r := d.r
	if err := r.tag("<stata_dta><header><release>"); err != nil {
		return formatError("header", err)
	}
	rel, err := r.bytes(3)
	if err != nil {
		return formatError("release", err)
	}
	release, err := strconv.Atoi(string(rel))
	if err != nil || release < 117 || release > 119 {
		return formatError(fmt.Sprintf("unsupported release %q", rel), nil)
	}
	d.file.Release = release

	if err := r.tag("</release><byteorder>"); err != nil {
		return formatError("byteorder", err)
	}
	bo, err := r.bytes(3)
	if err != nil {
		return formatError("byteorder", err)
	}
	switch string(bo) {
	case "MSF":
		r.order = binary.BigEndian
	case "LSF":
		r.order = binary.LittleEndian
	default:
		return formatError(fmt.Sprintf("unknown byte order %q", bo), nil)
	}

	kSize, nSize, labelSize, nameLen, fmtLen, varLabelLen := 2, 8, 2, 129, 57, 321
	if release == 117 {
		nSize, labelSize, nameLen, fmtLen, varLabelLen = 4, 1, 33, 49, 81
	}
	if release == 119 {
		kSize = 4
	}

	var nvar uint64
	if err := r.tag("</byteorder><K>"); err != nil {
		return formatError("K", err)
	}
	if nvar, err = r.uint(kSize); err != nil {
		return formatError("K", err)
	}
	if err := r.tag("</K><N>"); err != nil {
		return formatError("N", err)
	}
	if d.nobs, err = r.uint(nSize); err != nil {
		return formatError("N", err)
	}
	if err := r.tag("</N><label>"); err != nil {
		return formatError("label", err)
	}
	ll, err := r.uint(labelSize)
	if err != nil {
		return formatError("label", err)
	}
	label, err := r.bytes(int(ll))
	if err != nil {
		return formatError("label", err)
	}
	d.setDataLabel(label)
	if err := r.tag("</label><timestamp>"); err != nil {
		return formatError("timestamp", err)
	}
	tl, err := r.u8()
	if err != nil {
		return formatError("timestamp", err)
	}
	ts, err := r.bytes(int(tl))
	if err != nil {
		return formatError("timestamp", err)
	}
	d.setTimestamp(string(ts))
	if err := r.tag("</timestamp></header><map>"); err != nil {
		return formatError("map", err)
	}
	var offsets [14]int64
	for i := range offsets {
		v, err := r.u64()
		if err != nil {
			return formatError("map", err)
		}
		offsets[i] = int64(v)
	}

	if nvar > maxVariables {
		return formatError(fmt.Sprintf("implausible variable count %d", nvar), nil)
	}
	vars := make([]Variable, nvar)
	if err := d.section(offsets[2], "variable_types", func() error {
		for i := range vars {
			code, err := r.u16()
			if err != nil {
				return err
			}
			t, err := taggedType(code)
			if err != nil {
				return err
			}
			vars[i].Type = t
		}
		return nil
	}); err != nil {
		return err
	}
	if err := d.fixedStrings(offsets[3], "varnames", vars, nameLen, func(v *Variable, s string) { v.Name = s }); err != nil {
		return err
	}
	if err := d.fixedStrings(offsets[5], "formats", vars, fmtLen, func(v *Variable, s string) { v.Format = s }); err != nil {
		return err
	}
	if err := d.fixedStrings(offsets[6], "value_label_names", vars, nameLen, func(v *Variable, s string) { v.ValueLabel = s }); err != nil {
		return err
	}
	if err := d.fixedStrings(offsets[7], "variable_labels", vars, varLabelLen, func(v *Variable, s string) { v.Label = s }); err != nil {
		return err
	}
	d.file.Variables = vars

	// strL 的内容在数据区之后，先读出来再解析数据行
	if hasStrL(vars) {
		if err := d.section(offsets[10], "strls", d.readStrls); err != nil {
			return err
		}
	}
	return d.section(offsets[9], "data", d.readData)
}

// section 定位到 <name> 段，执行 body，并校验 </name>
func (d *decoder) section(offset int64, name string, body func() error) error {
	if err := d.r.seek(offset); err != nil {
		return formatError(name, err)
	}
	if err := d.r.tag("<" + name + ">"); err != nil {
		return formatError(name, err)
	}
	if err := body(); err != nil {
		return formatError(name, err)
	}
	if err := d.r.tag("</" + name + ">"); err != nil {
		return formatError(name, err)
	}
	return nil
}

func (d *decoder) fixedStrings(offset int64, name string, vars []Variable, width int, set func(*Variable, string)) error {
	return d.section(offset, name, func() error {
		buf := make([]byte, width)
		for i := range vars {
			if err := d.r.full(buf); err != nil {
				return err
			}
			set(&vars[i], d.text(buf))
		}
		return nil
	})
}

func taggedType(code uint16) (Type, error) {
	switch {
	case code >= 1 && code <= 2045:
		return Type{Kind: Str, Len: int(code)}, nil
	case code == 32768:
		return Type{Kind: StrL}, nil
	case code == 65526:
		return Type{Kind: Double}, nil
	case code == 65527:
		return Type{Kind: Float}, nil
	case code == 65528:
		return Type{Kind: Long}, nil
	case code == 65529:
		return Type{Kind: Int}, nil
	case code == 65530:
		return Type{Kind: Byte}, nil
	}
	return Type{}, fmt.Errorf("unknown variable type code %d", code)
}

// readLegacy 解析 release 113-115 的定长头部布局
func (d *decoder) readLegacy() error {
	r := d.r
	head, err := r.bytes(4)
	if err != nil {
		return formatError("header", err)
	}
	release := int(head[0])
	if release < 113 || release > 115 {
		return formatError(fmt.Sprintf("unsupported release %d", release), nil)
	}
	d.file.Release = release
	switch head[1] {
	case 1:
		r.order = binary.BigEndian
	case 2:
		r.order = binary.LittleEndian
	default:
		return formatError(fmt.Sprintf("unknown byte order %d", head[1]), nil)
	}

	nvar, err := r.u16()
	if err != nil {
		return formatError("nvar", err)
	}
	nobs, err := r.u32()
	if err != nil {
		return formatError("nobs", err)
	}
	d.nobs = uint64(nobs)
	label, err := r.bytes(81)
	if err != nil {
		return formatError("data_label", err)
	}
	d.setDataLabel(label)
	ts, err := r.bytes(18)
	if err != nil {
		return formatError("time_stamp", err)
	}
	d.setTimestamp(string(cstring(ts)))

	vars := make([]Variable, nvar)
	types, err := r.bytes(int(nvar))
	if err != nil {
		return formatError("typlist", err)
	}
	for i, code := range types {
		t, err := legacyType(code)
		if err != nil {
			return formatError("typlist", err)
		}
		vars[i].Type = t
	}

	fmtLen := 49
	if release == 113 {
		fmtLen = 12
	}
	read := func(section string, width int, set func(*Variable, string)) error {
		buf := make([]byte, width)
		for i := range vars {
			if err := r.full(buf); err != nil {
				return formatError(section, err)
			}
			set(&vars[i], d.text(buf))
		}
		return nil
	}
	if err := read("varlist", 33, func(v *Variable, s string) { v.Name = s }); err != nil {
		return err
	}
	if err := r.skip(2 * (int64(nvar) + 1)); err != nil {
		return formatError("srtlist", err)
	}
	if err := read("fmtlist", fmtLen, func(v *Variable, s string) { v.Format = s }); err != nil {
		return err
	}
	if err := read("lbllist", 33, func(v *Variable, s string) { v.ValueLabel = s }); err != nil {
		return err
	}
	if err := read("variable_labels", 81, func(v *Variable, s string) { v.Label = s }); err != nil {
		return err
	}
	d.file.Variables = vars

	// expansion fields：以 type=0,len=0 结束
	for {
		typ, err := r.u8()
		if err != nil {
			return formatError("expansion fields", err)
		}
		n, err := r.u32()
		if err != nil {
			return formatError("expansion fields", err)
		}
		if typ == 0 && n == 0 {
			break
		}
		if err := r.skip(int64(n)); err != nil {
			return formatError("expansion fields", err)
		}
	}

	if err := d.readData(); err != nil {
		return formatError("data", err)
	}
	return nil
}

func legacyType(code byte) (Type, error) {
	switch {
	case code >= 1 && code <= 244:
		return Type{Kind: Str, Len: int(code)}, nil
	case code == 251:
		return Type{Kind: Byte}, nil
	case code == 252:
		return Type{Kind: Int}, nil
	case code == 253:
		return Type{Kind: Long}, nil
	case code == 254:
		return Type{Kind: Float}, nil
	case code == 255:
		return Type{Kind: Double}, nil
	}
	return Type{}, fmt.Errorf("unknown variable type code %d", code)
}

// readData 按行读取数据区并渲染成文本表
func (d *decoder) readData() error {
	vars := d.file.Variables
	columns := make([]string, len(vars))
	cells := make([]cellFunc, len(vars))
	offsets := make([]int, len(vars))
	rowLen := 0
	for i, v := range vars {
		columns[i] = v.Name
		offsets[i] = rowLen
		rowLen += v.Type.Width()
		cells[i] = d.cellFunc(v)
	}

	// 没有变量时不可能有观测；否则 N 行数据必须装得进文件剩余部分
	if rowLen == 0 && d.nobs > 0 {
		return fmt.Errorf("%d observations declared without any variables", d.nobs)
	}
	if left := d.r.remaining(); rowLen > 0 && left >= 0 && d.nobs > uint64(left)/uint64(rowLen) {
		return fmt.Errorf("%d observations of %d bytes exceed the %d bytes left in the file", d.nobs, rowLen, left)
	}

	t := table.New(columns)
	capHint := d.nobs
	if capHint > 1<<20 {
		capHint = 1 << 20
	}
	t.Rows = make([][]string, 0, capHint)

	buf := make([]byte, rowLen)
	for n := uint64(0); n < d.nobs; n++ {
		if err := d.r.full(buf); err != nil {
			return fmt.Errorf("row %d: %w", n+1, err)
		}
		row := make([]string, len(vars))
		for i, v := range vars {
			row[i] = cells[i](buf[offsets[i] : offsets[i]+v.Type.Width()])
		}
		t.Rows = append(t.Rows, row)
	}
	d.file.Table = t
	return nil
}

func (d *decoder) cellFunc(v Variable) cellFunc {
	switch v.Type.Kind {
	case Str:
		// 同一列的字符串大量重复，复用解码结果
		seen := make(map[string]string)
		return func(raw []byte) string {
			raw = cstring(raw)
			if s, ok := seen[string(raw)]; ok {
				return s
			}
			s := d.text(raw)
			if len(seen) < 1<<16 {
				seen[string(raw)] = s
			}
			return s
		}
	case StrL:
		return func(raw []byte) string {
			return d.strls[d.strlRef(raw)]
		}
	default:
		return numericCell(v, d.r.order)
	}
}
