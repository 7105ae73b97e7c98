package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// 常见的旧版 Stata 代码页
var legacyEncodings = map[string]encoding.Encoding{
	"gb18030":      simplifiedchinese.GB18030,
	"gbk":          simplifiedchinese.GBK,
	"cp936":        simplifiedchinese.GBK,
	"big5":         traditionalchinese.Big5,
	"cp950":        traditionalchinese.Big5,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
}

// LookupEncoding 按名称查找文本编码。"utf-8" 或空串返回 nil，表示不做解码。
func LookupEncoding(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	if enc, ok := legacyEncodings[key]; ok {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil {
		return nil, fmt.Errorf("unknown text encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported text encoding %q", name)
	}
	return enc, nil
}

// DecodeText 把字节解码为 UTF-8 字符串：去掉 UTF-8 BOM，
// 合法 UTF-8 原样返回，否则按 fallback 编码解码。
func DecodeText(data []byte, fallback encoding.Encoding) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) || fallback == nil {
		return string(data), nil
	}
	decoded, err := fallback.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(decoded), nil
}

// SanitizeSheetName 清理工作表名称，移除 Excel 不允许的字符并限制为 31 个字符
func SanitizeSheetName(name string) string {
	invalidChars := []string{":", "\\", "/", "?", "*", "[", "]"}
	for _, char := range invalidChars {
		name = strings.ReplaceAll(name, char, "")
	}
	name = strings.TrimSpace(name)
	name = strings.Join(strings.Fields(name), " ") // 将多个空格替换为一个空格
	if utf8.RuneCountInString(name) > 31 {
		name = string([]rune(name)[:31])
	}
	if name == "" {
		return "Sheet1"
	}
	return name
}

// IsDTAFile 判断文件是否为 Stata 数据文件
func IsDTAFile(filePath string) bool {
	return strings.EqualFold(filepath.Ext(filePath), ".dta")
}

// OutputPath 把源文件名的 .dta 扩展名替换为 ext，放到 outputDir 下
func OutputPath(outputDir, sourcePath, ext string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, base+ext)
}

// FileSHA256 计算文件内容的 SHA-256
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", filepath.Base(path), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
