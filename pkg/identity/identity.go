// Package identity 从官员记录的几个人口学字段合成确定性的 PersonUID。
//
// PersonUID 是启发式标识：四个字段完全相同的不同人会共用一个 UID，
// 同一个人的异写也无法合并。
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/yleoer/stataconv/pkg/table"
)

// 参与合成的字段名
const (
	FieldSurname         = "姓"
	FieldGivenName       = "名"
	FieldStatusSecondary = "身份二"
	FieldBanner          = "旗分"
	FieldOriginPrimary   = "出身一"
)

const (
	// Column 是输出表中 UID 列的列名
	Column = "PersonUID"
	// Separator 用于拼接 PersonKey，源字段中不应出现
	Separator = "|"
	// Length 是 UID 取 MD5 十六进制摘要的前缀长度
	Length = 12
)

// KeyFields 按读取顺序列出参与合成的字段
var KeyFields = []string{FieldSurname, FieldGivenName, FieldStatusSecondary, FieldBanner, FieldOriginPrimary}

// PersonKey 是合成 UID 的四元组，各字段已去除首尾空白
type PersonKey struct {
	Name            string // 姓+名
	StatusSecondary string
	Banner          string
	OriginPrimary   string
}

// KeyOf 通过 get 读取字段构造 PersonKey，缺失字段按空串处理
func KeyOf(get func(field string) string) PersonKey {
	field := func(name string) string { return strings.TrimSpace(get(name)) }
	return PersonKey{
		Name:            field(FieldSurname) + field(FieldGivenName),
		StatusSecondary: field(FieldStatusSecondary),
		Banner:          field(FieldBanner),
		OriginPrimary:   field(FieldOriginPrimary),
	}
}

// String 返回参与哈希的组合键，例如 "瑞徵|A|B|C"
func (k PersonKey) String() string {
	return strings.Join([]string{k.Name, k.StatusSecondary, k.Banner, k.OriginPrimary}, Separator)
}

// UID 返回组合键 UTF-8 字节 MD5 摘要的前 12 位十六进制
func (k PersonKey) UID() string {
	sum := md5.Sum([]byte(k.String()))
	return hex.EncodeToString(sum[:])[:Length]
}

// UIDOf 是 KeyOf(get).UID() 的简写
func UIDOf(get func(field string) string) string {
	return KeyOf(get).UID()
}

// Stats 汇总一张表的 UID 覆盖情况
type Stats struct {
	Rows         int
	DistinctUIDs int
}

// DuplicateRatio 返回共享 UID 的记录占比
func (s Stats) DuplicateRatio() float64 {
	if s.Rows == 0 {
		return 0
	}
	return 1 - float64(s.DistinctUIDs)/float64(s.Rows)
}

func (s Stats) String() string {
	return fmt.Sprintf("%d rows, %d distinct PersonUIDs (%.2f%% shared)", s.Rows, s.DistinctUIDs, s.DuplicateRatio()*100)
}

// Annotate 为每一行计算 PersonUID 并作为第一列插入表中。
// 应在繁简规范化之后调用。
func Annotate(t *table.Table) (Stats, error) {
	idx := make(map[string]int, len(KeyFields))
	for _, f := range KeyFields {
		idx[f] = t.ColumnIndex(f)
	}

	uids := make([]string, len(t.Rows))
	seen := make(map[string]struct{})
	for r, row := range t.Rows {
		uid := UIDOf(func(field string) string {
			if i := idx[field]; i >= 0 {
				return row[i]
			}
			return ""
		})
		uids[r] = uid
		seen[uid] = struct{}{}
	}

	if err := t.Prepend(Column, uids); err != nil {
		return Stats{}, fmt.Errorf("failed to insert %s column: %w", Column, err)
	}
	return Stats{Rows: len(uids), DistinctUIDs: len(seen)}, nil
}
