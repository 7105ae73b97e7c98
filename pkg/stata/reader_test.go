package stata_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/yleoer/stataconv/pkg/stata"
	"github.com/yleoer/stataconv/pkg/stata/statatest"
)

func officials() statatest.Dataset {
	return statatest.Dataset{
		Label: "CGED-Q 测试",
		Vars: []statatest.Var{
			{Name: "record_number", Kind: stata.Long, Format: "%12.0g"},
			{Name: "姓", Kind: stata.Str, Len: 9, Format: "%9s", Label: "surname"},
			{Name: "名", Kind: stata.Str, Len: 9, Format: "%9s"},
			{Name: "阳历年份", Kind: stata.Int, Format: "%8.0g"},
			{Name: "季节号", Kind: stata.Byte, Format: "%8.0g"},
			{Name: "俸禄", Kind: stata.Double, Format: "%10.0g"},
			{Name: "比例", Kind: stata.Float, Format: "%9.0g"},
		},
		Rows: [][]any{
			{int64(1), "瑞", "徵", int64(1850), int64(1), 120.5, 0.25},
			{int64(2), "张", "之洞", nil, nil, nil, nil},
		},
	}
}

func read(t *testing.T, ds statatest.Dataset, opts stata.Options) *stata.File {
	t.Helper()
	b, err := statatest.Bytes(ds)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := stata.Read(bytes.NewReader(b), opts)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return f
}

func TestRead_Releases(t *testing.T) {
	t.Parallel()

	wantCols := []string{"record_number", "姓", "名", "阳历年份", "季节号", "俸禄", "比例"}
	wantRows := [][]string{
		{"1", "瑞", "徵", "1850", "1", "120.5", "0.25"},
		{"2", "张", "之洞", "", "", "", ""},
	}

	cases := []struct {
		name    string
		release int
		order   binary.ByteOrder
	}{
		{"118 LSF", 118, binary.LittleEndian},
		{"118 MSF", 118, binary.BigEndian},
		{"117 LSF", 117, binary.LittleEndian},
		{"119 LSF", 119, binary.LittleEndian},
		{"119 MSF", 119, binary.BigEndian},
		{"114 LOHI", 114, binary.LittleEndian},
		{"114 HILO", 114, binary.BigEndian},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ds := officials()
			ds.Release = tc.release
			ds.ByteOrder = tc.order
			f := read(t, ds, stata.Options{})

			if f.Release != tc.release {
				t.Fatalf("release want=%d got=%d", tc.release, f.Release)
			}
			if got := f.Table.Columns; !equal(got, wantCols) {
				t.Fatalf("columns want=%v got=%v", wantCols, got)
			}
			if f.Table.Len() != len(wantRows) {
				t.Fatalf("rows want=%d got=%d", len(wantRows), f.Table.Len())
			}
			for i, want := range wantRows {
				if got := f.Table.Rows[i]; !equal(got, want) {
					t.Fatalf("row %d want=%v got=%v", i, want, got)
				}
			}
			if label, ok := f.Meta.DataLabel.Get(); !ok || label != "CGED-Q 测试" {
				t.Fatalf("unexpected data label: %q %v", label, ok)
			}
			if ts, ok := f.Meta.Timestamp.Get(); !ok || ts.Year() != 2024 {
				t.Fatalf("unexpected timestamp: %v %v", ts, ok)
			}
			if f.Variables[1].Label != "surname" || f.Variables[1].Type.String() != "str9" {
				t.Fatalf("unexpected variable: %+v", f.Variables[1])
			}
		})
	}
}

func TestRead_StrL(t *testing.T) {
	t.Parallel()

	for _, release := range []int{117, 118, 119} {
		ds := statatest.Dataset{
			Release: release,
			Vars: []statatest.Var{
				{Name: "id", Kind: stata.Byte, Format: "%8.0g"},
				{Name: "备注", Kind: stata.StrL, Format: "%9s"},
			},
			Rows: [][]any{
				{int64(1), "很长的备注文字"},
				{int64(2), ""},
				{int64(3), "举人出身"},
			},
		}
		f := read(t, ds, stata.Options{})
		want := []string{"很长的备注文字", "", "举人出身"}
		for i, w := range want {
			if got := f.Table.Value(i, "备注"); got != w {
				t.Fatalf("release %d row %d want=%q got=%q", release, i, w, got)
			}
		}
	}
}

func TestRead_Dates(t *testing.T) {
	t.Parallel()

	ds := statatest.Dataset{
		Vars: []statatest.Var{
			{Name: "day", Kind: stata.Long, Format: "%td"},
			{Name: "stamp", Kind: stata.Double, Format: "%tc"},
		},
		Rows: [][]any{
			{int64(0), float64(0)},
			{int64(366), float64(86_400_000 + 3_600_000)},
			{nil, nil},
		},
	}
	f := read(t, ds, stata.Options{})
	want := [][]string{
		{"1960-01-01", "1960-01-01 00:00:00"},
		{"1961-01-01", "1960-01-02 01:00:00"},
		{"", ""},
	}
	for i, w := range want {
		if got := f.Table.Rows[i]; !equal(got, w) {
			t.Fatalf("row %d want=%v got=%v", i, w, got)
		}
	}
}

func TestRead_LegacyEncoding(t *testing.T) {
	t.Parallel()

	enc := simplifiedchinese.GB18030.NewEncoder()
	ds := officials()
	ds.Release = 114
	ds.Encode = func(s string) []byte {
		b, err := enc.Bytes([]byte(s))
		if err != nil {
			t.Fatalf("gb18030 encode %q: %v", s, err)
		}
		return b
	}

	f := read(t, ds, stata.Options{LegacyEncoding: simplifiedchinese.GB18030})
	if got := f.Table.Columns[1]; got != "姓" {
		t.Fatalf("column want=姓 got=%q", got)
	}
	if got := f.Table.Value(1, "名"); got != "之洞" {
		t.Fatalf("value want=之洞 got=%q", got)
	}
}

func TestRead_Corrupt(t *testing.T) {
	t.Parallel()

	good, err := statatest.Bytes(officials())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	inputs := map[string][]byte{
		"empty":     {},
		"garbage":   []byte("this is not a stata file"),
		"truncated": good[:len(good)/2],
		"release":   append([]byte("<stata_dta><header><release>120"), good[31:]...),
	}
	for name, b := range inputs {
		_, err := stata.Read(bytes.NewReader(b), stata.Options{})
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !errors.Is(err, stata.ErrFormat) {
			t.Fatalf("%s: expected ErrFormat, got %v", name, err)
		}
	}
}

func TestRead_BinaryStrL(t *testing.T) {
	t.Parallel()

	for _, release := range []int{117, 118, 119} {
		ds := statatest.Dataset{
			Release: release,
			Vars:    []statatest.Var{{Name: "blob", Kind: stata.StrL, Format: "%9s", Binary: true}},
			Rows:    [][]any{{"a\x00b\x00"}},
		}
		f := read(t, ds, stata.Options{})
		if got := f.Table.Value(0, "blob"); got != "a\x00b\x00" {
			t.Fatalf("release %d: binary strL must be kept intact, got %q", release, got)
		}
	}
}

// 头部声明的观测数超出文件实际内容时必须报错，而不是构造巨量的行
func TestRead_ImplausibleObservationCount(t *testing.T) {
	t.Parallel()

	patchN := func(ds statatest.Dataset, n uint32) []byte {
		b, err := statatest.Bytes(ds)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		// release 114 小端：N 位于第 6-9 字节
		binary.LittleEndian.PutUint32(b[6:10], n)
		return b
	}

	noVars := statatest.Dataset{Release: 114}
	withVars := officials()
	withVars.Release = 114
	inputs := map[string][]byte{
		"no variables":  patchN(noVars, 50_000_000),
		"too many rows": patchN(withVars, 1<<30),
	}
	for name, b := range inputs {
		_, err := stata.Read(bytes.NewReader(b), stata.Options{})
		if !errors.Is(err, stata.ErrFormat) {
			t.Fatalf("%s: expected ErrFormat, got %v", name, err)
		}
	}

	// 没有变量也没有观测的文件是合法的
	b, err := statatest.Bytes(noVars)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := stata.Read(bytes.NewReader(b), stata.Options{})
	if err != nil || f.Table.Len() != 0 {
		t.Fatalf("empty dataset: %v", err)
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "officials.dta")
	if err := statatest.WriteFile(path, officials()); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := stata.ReadFile(path, stata.Options{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Table.Value(0, "姓") != "瑞" {
		t.Fatalf("unexpected first row: %v", f.Table.Rows[0])
	}

	if _, err := stata.ReadFile(filepath.Join(t.TempDir(), "missing.dta"), stata.Options{}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestOpt(t *testing.T) {
	t.Parallel()

	var none stata.Opt[string]
	if _, ok := none.Get(); ok {
		t.Fatalf("zero Opt should be absent")
	}
	some := stata.Some("")
	if v, ok := some.Get(); !ok || v != "" {
		t.Fatalf("Some(\"\") should be present and empty")
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
