package sbtiff

import (
	"fmt"
	"strings"
)

// IFD is one image file directory: an ordered tag table plus the offset it
// was read from. Entries are kept in file order; a well-formed file sorts
// them by tag id but lookups never rely on that.
type IFD struct {
	// Offset is the IFD's own byte offset, which identifies it within
	// the file.
	Offset uint64

	// Entries is the tag table in file order.
	Entries []Tag

	// Next is the standard next-IFD pointer, 0 when the chain ends here.
	Next uint64
}

// Tag is one IFD entry. The value is either stored inline in the entry's
// value slot (when count*typeSize fits) or out of line at an absolute
// offset; the branch is decided once, when the entry is read, and the
// out-of-line case is resolved lazily on first access.
type Tag struct {
	ID    uint16
	Type  DataType
	Count uint64

	f        *File
	inline   []byte // value bytes, when they fit the slot
	valueOff uint64 // absolute value offset otherwise
}

// ReadIFD parses the IFD at the given absolute offset. Both the primary
// chain walk and private-tag layer resolution use this; only the offset
// source differs.
func (f *File) ReadIFD(offset uint64) (*IFD, error) {
	var count uint64
	var err error
	pos := offset

	if f.bigTIFF {
		count, err = f.r.Uint64(pos)
		pos += 8
	} else {
		var c16 uint16
		c16, err = f.r.Uint16(pos)
		count = uint64(c16)
		pos += 2
	}
	if err != nil {
		return nil, fmt.Errorf("%w: IFD header at offset %d past end of file", ErrMalformedIfd, offset)
	}

	// The whole entry table plus the next pointer must fit the buffer
	// before any entry is read. The count is capped first so the size
	// arithmetic cannot overflow on a hostile BigTIFF count.
	if count > uint64(f.r.Len())/f.entrySize() {
		return nil, fmt.Errorf("%w: IFD at offset %d declares %d entries past end of file",
			ErrMalformedIfd, offset, count)
	}
	tableLen := count*f.entrySize() + uint64(f.nextPtrSize())
	if !f.r.InBounds(pos, tableLen) {
		return nil, fmt.Errorf("%w: IFD at offset %d declares %d entries past end of file",
			ErrMalformedIfd, offset, count)
	}

	ifd := &IFD{Offset: offset, Entries: make([]Tag, 0, count)}

	for i := uint64(0); i < count; i++ {
		tag, err := f.readEntry(pos)
		if err != nil {
			return nil, err
		}
		pos += f.entrySize()

		if prev, ok := ifd.Tag(tag.ID); ok {
			f.warnf("IFD at offset %d: duplicate tag %d (types %d and %d), keeping the first",
				offset, tag.ID, prev.Type, tag.Type)
			continue
		}
		ifd.Entries = append(ifd.Entries, tag)
	}

	if f.bigTIFF {
		ifd.Next, err = f.r.Uint64(pos)
	} else {
		var n32 uint32
		n32, err = f.r.Uint32(pos)
		ifd.Next = uint64(n32)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: next-IFD pointer at offset %d past end of file", ErrMalformedIfd, offset)
	}

	return ifd, nil
}

// nextPtrSize returns the size of the next-IFD pointer for the file flavor.
func (f *File) nextPtrSize() int {
	if f.bigTIFF {
		return 8
	}
	return 4
}

// readEntry parses one tag entry at pos. Unknown tag ids and data types
// are preserved as opaque bytes; vendor-private tags coexist with standard
// ones, so unknown-tag tolerance is required here.
func (f *File) readEntry(pos uint64) (Tag, error) {
	id, err := f.r.Uint16(pos)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: tag entry at offset %d truncated", ErrMalformedIfd, pos)
	}
	typ, err := f.r.Uint16(pos + 2)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: tag entry at offset %d truncated", ErrMalformedIfd, pos)
	}

	tag := Tag{ID: id, Type: DataType(typ), f: f}

	var slotPos uint64
	if f.bigTIFF {
		tag.Count, err = f.r.Uint64(pos + 4)
		slotPos = pos + 12
	} else {
		var c32 uint32
		c32, err = f.r.Uint32(pos + 4)
		tag.Count = uint64(c32)
		slotPos = pos + 8
	}
	if err != nil {
		return Tag{}, fmt.Errorf("%w: tag entry at offset %d truncated", ErrMalformedIfd, pos)
	}

	// Inline-vs-offset branch: the exact size predicate, never a tag list.
	if byteLen := tag.ByteLen(); byteLen <= f.inlineSize() {
		slot, err := f.r.Bytes(slotPos, byteLen)
		if err != nil {
			return Tag{}, fmt.Errorf("%w: tag %d value slot truncated", ErrMalformedIfd, id)
		}
		tag.inline = slot
	} else if f.bigTIFF {
		tag.valueOff, err = f.r.Uint64(slotPos)
	} else {
		var o32 uint32
		o32, err = f.r.Uint32(slotPos)
		tag.valueOff = uint64(o32)
	}
	if err != nil {
		return Tag{}, fmt.Errorf("%w: tag %d value slot truncated", ErrMalformedIfd, id)
	}

	return tag, nil
}

// Tag returns the entry with the given id, searching in file order.
func (d *IFD) Tag(id uint16) (*Tag, bool) {
	for i := range d.Entries {
		if d.Entries[i].ID == id {
			return &d.Entries[i], true
		}
	}
	return nil, false
}

// Has reports whether the IFD carries the given tag.
func (d *IFD) Has(id uint16) bool {
	_, ok := d.Tag(id)
	return ok
}

// Inline reports whether the tag's value is stored inside the entry slot.
func (t *Tag) Inline() bool {
	return t.inline != nil
}

// ByteLen returns the total value length in bytes. A count large enough to
// overflow the multiplication saturates instead of wrapping, so the bounds
// checks downstream reject it.
func (t *Tag) ByteLen() uint64 {
	size := t.Type.Size()
	if t.Count > ^uint64(0)/size {
		return ^uint64(0)
	}
	return t.Count * size
}

// Value returns the raw value bytes. Inline values come from the entry
// slot; out-of-line values are read from the recorded offset, failing with
// ErrOutOfBounds when the span leaves the buffer. The returned slice
// aliases the file buffer and must not be modified.
func (t *Tag) Value() ([]byte, error) {
	if t.inline != nil {
		return t.inline, nil
	}
	v, err := t.f.r.Bytes(t.valueOff, t.ByteLen())
	if err != nil {
		return nil, fmt.Errorf("%w: tag %d value (%d bytes at offset %d)",
			ErrOutOfBounds, t.ID, t.ByteLen(), t.valueOff)
	}
	return v, nil
}

// Uint returns the i-th value as an unsigned integer for the integer tag
// types (BYTE, SHORT, LONG, LONG8).
func (t *Tag) Uint(i uint64) (uint64, error) {
	if i >= t.Count {
		return 0, fmt.Errorf("%w: tag %d index %d of %d", ErrMalformedIfd, t.ID, i, t.Count)
	}
	v, err := t.Value()
	if err != nil {
		return 0, err
	}
	order := t.f.r.Order()
	switch t.Type {
	case TypeByte:
		return uint64(v[i]), nil
	case TypeShort:
		return uint64(order.Uint16(v[i*2:])), nil
	case TypeLong:
		return uint64(order.Uint32(v[i*4:])), nil
	case TypeLong8, TypeIFD8:
		return order.Uint64(v[i*8:]), nil
	default:
		return 0, fmt.Errorf("%w: tag %d has non-integer type %d", ErrMalformedIfd, t.ID, t.Type)
	}
}

// Uints returns all values of an integer-typed tag.
func (t *Tag) Uints() ([]uint64, error) {
	out := make([]uint64, t.Count)
	for i := uint64(0); i < t.Count; i++ {
		v, err := t.Uint(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ASCII returns the tag value as a string with the trailing NUL and any
// padding removed.
func (t *Tag) ASCII() (string, error) {
	v, err := t.Value()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(v), "\x00"), nil
}

// uintTag returns the first value of an integer tag on the IFD, or def
// when the tag is absent.
func (d *IFD) uintTag(id uint16, def uint64) (uint64, error) {
	t, ok := d.Tag(id)
	if !ok {
		return def, nil
	}
	if t.Count == 0 {
		return def, nil
	}
	return t.Uint(0)
}

// uintsTag returns all values of an integer tag, or nil when absent.
func (d *IFD) uintsTag(id uint16) ([]uint64, error) {
	t, ok := d.Tag(id)
	if !ok {
		return nil, nil
	}
	return t.Uints()
}
