package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

func TestLookupEncoding(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "UTF-8", "utf8"} {
		enc, err := LookupEncoding(name)
		if err != nil || enc != nil {
			t.Fatalf("%q: want nil encoding, got %v %v", name, enc, err)
		}
	}
	if enc, err := LookupEncoding(" GB18030 "); err != nil || enc != simplifiedchinese.GB18030 {
		t.Fatalf("gb18030 lookup failed: %v", err)
	}
	if enc, err := LookupEncoding("cp950"); err != nil || enc != traditionalchinese.Big5 {
		t.Fatalf("cp950 lookup failed: %v", err)
	}
	if enc, err := LookupEncoding("shift_jis"); err != nil || enc == nil {
		t.Fatalf("IANA fallback failed: %v", err)
	}
	if _, err := LookupEncoding("klingon"); err == nil {
		t.Fatalf("expected error for unknown encoding")
	}
}

func TestDecodeText(t *testing.T) {
	t.Parallel()

	gb, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte("镶黄旗"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cases := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf8", []byte("镶黄旗"), "镶黄旗"},
		{"bom", append([]byte{0xEF, 0xBB, 0xBF}, "旗分"...), "旗分"},
		{"gb18030", gb, "镶黄旗"},
	}
	for _, tc := range cases {
		got, err := DecodeText(tc.in, simplifiedchinese.GB18030)
		if err != nil || got != tc.want {
			t.Fatalf("%s: want=%q got=%q err=%v", tc.name, tc.want, got, err)
		}
	}
	if got, _ := DecodeText(gb, nil); got != string(gb) {
		t.Fatalf("nil fallback should return bytes unchanged")
	}
}

func TestSanitizeSheetName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Sheet1":           "Sheet1",
		"a/b:c":            "abc",
		"  many   spaces ": "many spaces",
		"":                 "Sheet1",
		"[]":               "Sheet1",
	}
	for in, want := range cases {
		if got := SanitizeSheetName(in); got != want {
			t.Fatalf("SanitizeSheetName(%q) want=%q got=%q", in, want, got)
		}
	}

	long := strings.Repeat("官", 40)
	if got := SanitizeSheetName(long); got != strings.Repeat("官", 31) {
		t.Fatalf("long names should be cut to 31 runes, got %q", got)
	}
}

func TestOutputPath(t *testing.T) {
	t.Parallel()

	got := OutputPath("out", filepath.Join("in", "officials.DTA"), ".csv")
	if got != filepath.Join("out", "officials.csv") {
		t.Fatalf("unexpected output path %s", got)
	}
	if !IsDTAFile("x.Dta") || IsDTAFile("x.csv") {
		t.Fatalf("IsDTAFile mismatch")
	}
}

func TestFileSHA256(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.dta")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sum, err := FileSHA256(path)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if sum != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("unexpected sha256 %s", sum)
	}
	if _, err := FileSHA256(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
