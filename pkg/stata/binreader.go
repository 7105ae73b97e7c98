package stata

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// maxChunk 限制单次读取的长度，损坏的长度字段不会导致巨量分配
const maxChunk = 1 << 30

// binReader 是带缓冲、可定位的按字节序读取器
type binReader struct {
	src   io.ReadSeeker
	br    *bufio.Reader
	pos   int64
	order binary.ByteOrder
	buf   [8]byte
	size  int64 // 源的总长度，-1 表示未知
}

func newBinReader(src io.ReadSeeker) *binReader {
	size := int64(-1)
	if end, err := src.Seek(0, io.SeekEnd); err == nil {
		if _, err := src.Seek(0, io.SeekStart); err == nil {
			size = end
		}
	}
	return &binReader{src: src, br: bufio.NewReaderSize(src, 256*1024), order: binary.LittleEndian, size: size}
}

// remaining 返回当前位置之后还剩多少字节，未知时返回 -1
func (r *binReader) remaining() int64 {
	if r.size < 0 {
		return -1
	}
	return r.size - r.pos
}

func (r *binReader) full(p []byte) error {
	n, err := io.ReadFull(r.br, p)
	r.pos += int64(n)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func (r *binReader) bytes(n int) ([]byte, error) {
	if n < 0 || n > maxChunk {
		return nil, fmt.Errorf("implausible length %d", n)
	}
	p := make([]byte, n)
	return p, r.full(p)
}

func (r *binReader) skip(n int64) error {
	if n < 0 {
		return fmt.Errorf("negative skip %d", n)
	}
	d, err := r.br.Discard(int(n))
	r.pos += int64(d)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func (r *binReader) seek(off int64) error {
	if off == r.pos {
		return nil
	}
	if _, err := r.src.Seek(off, io.SeekStart); err != nil {
		return err
	}
	r.br.Reset(r.src)
	r.pos = off
	return nil
}

func (r *binReader) u8() (uint8, error) {
	if err := r.full(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

func (r *binReader) u16() (uint16, error) {
	if err := r.full(r.buf[:2]); err != nil {
		return 0, err
	}
	return r.order.Uint16(r.buf[:2]), nil
}

func (r *binReader) u32() (uint32, error) {
	if err := r.full(r.buf[:4]); err != nil {
		return 0, err
	}
	return r.order.Uint32(r.buf[:4]), nil
}

func (r *binReader) u64() (uint64, error) {
	if err := r.full(r.buf[:8]); err != nil {
		return 0, err
	}
	return r.order.Uint64(r.buf[:8]), nil
}

// uint 按 size 字节读取无符号整数
func (r *binReader) uint(size int) (uint64, error) {
	switch size {
	case 1:
		v, err := r.u8()
		return uint64(v), err
	case 2:
		v, err := r.u16()
		return uint64(v), err
	case 4:
		v, err := r.u32()
		return uint64(v), err
	case 8:
		return r.u64()
	default:
		return 0, fmt.Errorf("unsupported integer size %d", size)
	}
}

// tag 读取并校验一个 <tag> 标记
func (r *binReader) tag(name string) error {
	want := []byte(name)
	got, err := r.bytes(len(want))
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("expected %q at offset %d, found %q", name, r.pos-int64(len(want)), got)
	}
	return nil
}

// cstring 截取第一个 NUL 之前的字节
func cstring(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

func (r *binReader) peek(n int) ([]byte, error) {
	return r.br.Peek(n)
}
