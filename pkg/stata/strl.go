package stata

import (
	"bytes"
	"fmt"
)

// strlKey 是 strL 的 (v,o) 引用：v 为变量序号，o 为观测序号，均从 1 开始
type strlKey struct {
	v, o uint64
}

func hasStrL(vars []Variable) bool {
	for _, v := range vars {
		if v.Type.Kind == StrL {
			return true
		}
	}
	return false
}

// strlRef 解码数据区中 8 字节的 strL 引用
func (d *decoder) strlRef(raw []byte) strlKey {
	order := d.r.order
	switch d.file.Release {
	case 117:
		return strlKey{v: uint64(order.Uint32(raw[0:4])), o: uint64(order.Uint32(raw[4:8]))}
	case 118:
		x := order.Uint64(raw)
		return strlKey{v: x & 0xffff, o: x >> 16}
	default:
		x := order.Uint64(raw)
		return strlKey{v: x & 0xffffff, o: x >> 24}
	}
}

// readStrls 读取 <strls> 段中的所有 GSO 记录
func (d *decoder) readStrls() error {
	r := d.r
	d.strls = make(map[strlKey]string)
	for {
		next, err := r.peek(3)
		if err != nil {
			return err
		}
		if !bytes.Equal(next, []byte("GSO")) {
			return nil
		}
		if err := r.skip(3); err != nil {
			return err
		}
		v, err := r.u32()
		if err != nil {
			return err
		}
		var o uint64
		if d.file.Release == 117 {
			o32, err := r.u32()
			if err != nil {
				return err
			}
			o = uint64(o32)
		} else if o, err = r.u64(); err != nil {
			return err
		}
		typ, err := r.u8()
		if err != nil {
			return err
		}
		n, err := r.u32()
		if err != nil {
			return err
		}
		data, err := r.bytes(int(n))
		if err != nil {
			return fmt.Errorf("GSO (%d,%d): %w", v, o, err)
		}
		// 130 为以 NUL 结尾的文本，129 为二进制，原样保留
		key := strlKey{v: uint64(v), o: o}
		if typ == 130 {
			d.strls[key] = d.text(bytes.TrimSuffix(data, []byte{0}))
		} else {
			d.strls[key] = string(data)
		}
	}
}
