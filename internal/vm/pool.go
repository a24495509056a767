package vm

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
)

// ConstPool is the constant data shared by every module of a compilation.
// Each distinct value is encoded once into a byte buffer; ids start at 1
// and 0 means "no constant".
type ConstPool struct {
	mu      sync.Mutex
	buf     []byte
	offsets []int             // offsets[id-1] is the start of constant id
	memo    map[string]uint32 // encoded value -> id
}

func NewConstPool() *ConstPool {
	return &ConstPool{memo: make(map[string]uint32)}
}

// Intern returns the id of v, adding it when it is new.
func (p *ConstPool) Intern(v Value) uint32 {
	enc := encode(v)
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.memo[string(enc)]; ok {
		return id
	}
	p.offsets = append(p.offsets, len(p.buf))
	p.buf = append(p.buf, enc...)
	id := uint32(len(p.offsets))
	p.memo[string(enc)] = id
	return id
}

// Lookup returns the id of v without inserting it.
func (p *ConstPool) Lookup(v Value) (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.memo[string(encode(v))]
	return id, ok
}

// Get decodes constant id.
func (p *ConstPool) Get(id uint32) (Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == 0 || int(id) > len(p.offsets) {
		return Value{}, errors.Errorf("constant id %d out of range", id)
	}
	v, _, err := decode(p.buf[p.offsets[id-1]:])
	return v, err
}

// Offset returns the byte offset of constant id in Bytes.
func (p *ConstPool) Offset(id uint32) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == 0 || int(id) > len(p.offsets) {
		return -1
	}
	return p.offsets[id-1]
}

// Len returns the number of constants.
func (p *ConstPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.offsets)
}

// Bytes returns a copy of the encoded buffer.
func (p *ConstPool) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}

// Values decodes every constant in id order.
func (p *ConstPool) Values() []Value {
	n := p.Len()
	out := make([]Value, 0, n)
	for id := uint32(1); id <= uint32(n); id++ {
		v, err := p.Get(id)
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}

// encode writes a tag byte followed by the payload: 8 little-endian bytes
// for numbers, one byte for bools, uvarint length plus bytes for strings.
func encode(v Value) []byte {
	out := []byte{byte(v.Type)}
	switch v.Type {
	case ValInt, ValFloat, ValDuration, ValSize:
		out = binary.LittleEndian.AppendUint64(out, v.Data)
	case ValBool:
		out = append(out, byte(v.Data))
	case ValString:
		out = binary.AppendUvarint(out, uint64(len(v.Str)))
		out = append(out, v.Str...)
	}
	return out
}

func decode(b []byte) (Value, int, error) {
	if len(b) == 0 {
		return Value{}, 0, errors.New("truncated constant")
	}
	v := Value{Type: ValueType(b[0])}
	switch v.Type {
	case ValNil:
		return v, 1, nil
	case ValInt, ValFloat, ValDuration, ValSize:
		if len(b) < 9 {
			return Value{}, 0, errors.New("truncated number constant")
		}
		v.Data = binary.LittleEndian.Uint64(b[1:9])
		return v, 9, nil
	case ValBool:
		if len(b) < 2 {
			return Value{}, 0, errors.New("truncated bool constant")
		}
		v.Data = uint64(b[1])
		return v, 2, nil
	case ValString:
		n, k := binary.Uvarint(b[1:])
		if k <= 0 || len(b) < 1+k+int(n) {
			return Value{}, 0, errors.New("truncated string constant")
		}
		v.Str = string(b[1+k : 1+k+int(n)])
		return v, 1 + k + int(n), nil
	}
	return Value{}, 0, errors.Errorf("unknown constant tag %d", b[0])
}
