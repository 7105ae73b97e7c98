package table

import "fmt"

// Table 是一张按列名有序的文本表，所有行与 Columns 等长
type Table struct {
	Columns []string
	Rows    [][]string
}

// New 创建一张只有表头的空表
func New(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Append 追加一行，长度必须与表头一致
func (t *Table) Append(row []string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Len 返回数据行数
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex 返回列名第一次出现的位置，不存在时返回 -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value 读取第 row 行 name 列的值，列不存在时返回空串
func (t *Table) Value(row int, name string) string {
	i := t.ColumnIndex(name)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][i]
}

// Prepend 把一列插到最前面，其余列保持原有相对顺序。
// 同名列已存在时先移除旧列（重复运行时不会出现两列 PersonUID）。
func (t *Table) Prepend(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.Rows))
	}
	if i := t.ColumnIndex(name); i >= 0 {
		t.removeColumn(i)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	cols = append(cols, name)
	cols = append(cols, t.Columns...)
	t.Columns = cols

	for r, row := range t.Rows {
		out := make([]string, 0, len(row)+1)
		out = append(out, values[r])
		out = append(out, row...)
		t.Rows[r] = out
	}
	return nil
}

func (t *Table) removeColumn(i int) {
	t.Columns = append(t.Columns[:i:i], t.Columns[i+1:]...)
	for r, row := range t.Rows {
		t.Rows[r] = append(row[:i:i], row[i+1:]...)
	}
}
