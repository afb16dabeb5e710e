// Package tifftest assembles synthetic TIFF buffers for tests. It writes
// both classic and BigTIFF layouts in either byte order and knows the
// Sketchbook layer record shape, so tests can construct exactly the file
// they need without binary fixtures.
package tifftest

import "encoding/binary"

// TIFF data type ids understood by the builder.
const (
	TypeByte  uint16 = 1
	TypeASCII uint16 = 2
	TypeShort uint16 = 3
	TypeLong  uint16 = 4
	TypeLong8 uint16 = 16
)

// Entry is one IFD tag entry to be serialized. Value holds the raw value
// bytes in the builder's byte order; the builder stores them inline when
// they fit the entry slot and out of line otherwise. An external entry
// carries an explicit value offset instead, letting tests point a tag at
// arbitrary (including out-of-range) positions.
type Entry struct {
	ID    uint16
	Type  uint16
	Count uint64
	Value []byte

	external bool
	extOff   uint64
}

// Builder accumulates a TIFF buffer. The header is written on creation
// with a zero first-IFD pointer; SetFirstIFD patches it once the root IFD
// offset is known.
type Builder struct {
	order binary.ByteOrder
	big   bool
	buf   []byte
}

// New starts a buffer with a classic or BigTIFF header in the given order.
func New(order binary.ByteOrder, big bool) *Builder {
	b := &Builder{order: order, big: big}
	if order == binary.LittleEndian {
		b.buf = append(b.buf, 'I', 'I')
	} else {
		b.buf = append(b.buf, 'M', 'M')
	}
	if big {
		b.putU16(43)
		b.putU16(8)
		b.putU16(0)
		b.putU64(0)
	} else {
		b.putU16(42)
		b.putU32(0)
	}
	return b
}

// SetFirstIFD patches the header's first-IFD pointer.
func (b *Builder) SetFirstIFD(off uint64) {
	if b.big {
		b.order.PutUint64(b.buf[8:], off)
	} else {
		b.order.PutUint32(b.buf[4:], uint32(off))
	}
}

// Bytes returns the assembled buffer.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Offset returns the position the next Add or IFD call will write to.
func (b *Builder) Offset() uint64 {
	b.align()
	return uint64(len(b.buf))
}

// Add appends a data blob at a word-aligned offset and returns that offset.
func (b *Builder) Add(data []byte) uint64 {
	b.align()
	off := uint64(len(b.buf))
	b.buf = append(b.buf, data...)
	return off
}

// IFD appends an IFD with the given entries and next pointer, returning
// its offset. Out-of-line entry values are written first, so the IFD table
// itself lands at the offset the call returns.
func (b *Builder) IFD(next uint64, entries ...Entry) uint64 {
	inline := 4
	if b.big {
		inline = 8
	}

	offs := make([]uint64, len(entries))
	for i := range entries {
		if !entries[i].external && len(entries[i].Value) > inline {
			offs[i] = b.Add(entries[i].Value)
		}
	}

	off := b.Offset()

	if b.big {
		b.putU64(uint64(len(entries)))
	} else {
		b.putU16(uint16(len(entries)))
	}

	for i, e := range entries {
		b.putU16(e.ID)
		b.putU16(e.Type)
		if b.big {
			b.putU64(e.Count)
		} else {
			b.putU32(uint32(e.Count))
		}

		switch {
		case e.external:
			b.putOff(e.extOff)
		case len(e.Value) > inline:
			b.putOff(offs[i])
		default:
			slot := make([]byte, inline)
			copy(slot, e.Value)
			b.buf = append(b.buf, slot...)
		}
	}

	if b.big {
		b.putU64(next)
	} else {
		b.putU32(uint32(next))
	}
	return off
}

// Byte builds a BYTE entry.
func (b *Builder) Byte(id uint16, vals ...byte) Entry {
	return Entry{ID: id, Type: TypeByte, Count: uint64(len(vals)), Value: vals}
}

// Short builds a SHORT entry.
func (b *Builder) Short(id uint16, vals ...uint16) Entry {
	v := make([]byte, 2*len(vals))
	for i, x := range vals {
		b.order.PutUint16(v[i*2:], x)
	}
	return Entry{ID: id, Type: TypeShort, Count: uint64(len(vals)), Value: v}
}

// Long builds a LONG entry.
func (b *Builder) Long(id uint16, vals ...uint32) Entry {
	v := make([]byte, 4*len(vals))
	for i, x := range vals {
		b.order.PutUint32(v[i*4:], x)
	}
	return Entry{ID: id, Type: TypeLong, Count: uint64(len(vals)), Value: v}
}

// ASCII builds an ASCII entry with the required NUL terminator.
func (b *Builder) ASCII(id uint16, s string) Entry {
	v := append([]byte(s), 0)
	return Entry{ID: id, Type: TypeASCII, Count: uint64(len(v)), Value: v}
}

// External builds an entry whose value slot carries an explicit offset,
// regardless of whether the value would fit inline.
func (b *Builder) External(id, typ uint16, count, off uint64) Entry {
	return Entry{ID: id, Type: typ, Count: count, external: true, extOff: off}
}

// LayerRecord serializes one 32-byte Alias layer table record.
func (b *Builder) LayerRecord(ifdOff uint32, name string, opacity uint16, visible bool, mode uint8, x, y int32) []byte {
	rec := make([]byte, 32)
	b.order.PutUint32(rec[0:], ifdOff)
	copy(rec[4:20], name)
	b.order.PutUint16(rec[20:], opacity)
	if visible {
		rec[22] = 1
	}
	rec[23] = mode
	b.order.PutUint32(rec[24:], uint32(x))
	b.order.PutUint32(rec[28:], uint32(y))
	return rec
}

func (b *Builder) putU16(v uint16) {
	var t [2]byte
	b.order.PutUint16(t[:], v)
	b.buf = append(b.buf, t[:]...)
}

func (b *Builder) putU32(v uint32) {
	var t [4]byte
	b.order.PutUint32(t[:], v)
	b.buf = append(b.buf, t[:]...)
}

func (b *Builder) putU64(v uint64) {
	var t [8]byte
	b.order.PutUint64(t[:], v)
	b.buf = append(b.buf, t[:]...)
}

func (b *Builder) putOff(off uint64) {
	if b.big {
		b.putU64(off)
	} else {
		b.putU32(uint32(off))
	}
}

func (b *Builder) align() {
	if len(b.buf)%2 == 1 {
		b.buf = append(b.buf, 0)
	}
}
