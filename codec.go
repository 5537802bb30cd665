package sym

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/concolic/sym/log"
)

// Wire tags identifying the expression variant that follows.
const (
	tagBasic    = 0x00
	tagCompare  = 0x01
	tagBinary   = 0x02
	tagUnary    = 0x03
	tagDeref    = 0x04
	tagConstant = 0x05
)

// Byte-order markers written in the stream header.
const (
	orderMarkerLittle = 0x00
	orderMarkerBig    = 0x01
)

// UnknownTagError is returned when a decoded stream contains a tag byte
// outside the known variant set.
type UnknownTagError struct {
	Tag    byte
	Offset int64
}

// Error returns the error as a string.
func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("sym: unknown node tag 0x%02x at offset %d", e.Tag, e.Offset)
}

// Encoder writes expression trees and linear expressions to a stream.
//
// Every node is laid out as value (8 bytes), size (4 bytes), a one-byte
// variant tag, and a tag-specific payload; integer fields are fixed-width
// little-endian regardless of the configured byte order. The byte order the
// producer used for CONCAT/EXTRACT nodes is recorded in a one-byte header
// at the start of the stream so the consumer can adopt the same convention.
type Encoder struct {
	w           io.Writer
	order       ByteOrder
	wroteHeader bool
}

// NewEncoder returns an Encoder writing to w, stamping the stream with order.
func NewEncoder(w io.Writer, order ByteOrder) *Encoder {
	return &Encoder{w: w, order: order}
}

// Encode appends the recursive encoding of e to the stream.
func (enc *Encoder) Encode(e Expr) error {
	if err := enc.writeHeader(); err != nil {
		return err
	}
	return enc.encodeExpr(e)
}

// EncodeLinear appends the encoding of le to the stream: the constant term,
// the coefficient count, and each (variable, coefficient) pair.
func (enc *Encoder) EncodeLinear(le *LinearExpr) error {
	if err := enc.writeHeader(); err != nil {
		return err
	}
	if err := enc.writeUint64(uint64(le.constant), "linear constant"); err != nil {
		return err
	}
	if err := enc.writeUint32(uint32(len(le.coeff)), "linear coefficient count"); err != nil {
		return err
	}
	for _, v := range le.sortedVars() {
		if err := enc.writeUint32(uint32(v), "linear variable"); err != nil {
			return err
		}
		if err := enc.writeUint64(uint64(le.coeff[v]), "linear coefficient"); err != nil {
			return err
		}
	}
	return nil
}

func (enc *Encoder) writeHeader() error {
	if enc.wroteHeader {
		return nil
	}
	marker := byte(orderMarkerLittle)
	if enc.order == BigEndian {
		marker = orderMarkerBig
	}
	if err := enc.writeByte(marker, "byte order marker"); err != nil {
		return err
	}
	enc.wroteHeader = true
	return nil
}

func (enc *Encoder) encodeExpr(e Expr) error {
	switch e := e.(type) {
	case *ConstantExpr:
		return enc.encodeCommon(e.Value, e.Size, tagConstant)
	case *BasicExpr:
		if err := enc.encodeCommon(e.Value, e.Size, tagBasic); err != nil {
			return err
		}
		return enc.writeUint32(uint32(e.Var), "variable id")
	case *CompareExpr:
		if err := enc.encodeCommon(e.Value, e.Size, tagCompare); err != nil {
			return err
		}
		if err := enc.writeByte(byte(e.Op), "compare op"); err != nil {
			return err
		}
		if err := enc.encodeExpr(e.LHS); err != nil {
			return err
		}
		return enc.encodeExpr(e.RHS)
	case *BinaryExpr:
		if err := enc.encodeCommon(e.Value, e.Size, tagBinary); err != nil {
			return err
		}
		if err := enc.writeByte(byte(e.Op), "binary op"); err != nil {
			return err
		}
		if err := enc.encodeExpr(e.LHS); err != nil {
			return err
		}
		return enc.encodeExpr(e.RHS)
	case *UnaryExpr:
		if err := enc.encodeCommon(e.Value, e.Size, tagUnary); err != nil {
			return err
		}
		if err := enc.writeByte(byte(e.Op), "unary op"); err != nil {
			return err
		}
		return enc.encodeExpr(e.Child)
	case *DerefExpr:
		if err := enc.encodeCommon(e.Value, e.Size, tagDeref); err != nil {
			return err
		}
		if err := enc.encodeObject(e.Object); err != nil {
			return err
		}
		if err := enc.encodeExpr(e.Addr); err != nil {
			return err
		}
		if _, err := enc.w.Write(e.Snapshot); err != nil {
			return errors.Wrap(err, "sym: encode deref snapshot")
		}
		return nil
	default:
		panic("unreachable")
	}
}

// encodeCommon writes the value/size prefix shared by every node, followed
// by the variant tag.
func (enc *Encoder) encodeCommon(value int64, size uint32, tag byte) error {
	if err := enc.writeUint64(uint64(value), "value"); err != nil {
		return err
	}
	if err := enc.writeUint32(size, "size"); err != nil {
		return err
	}
	return enc.writeByte(tag, "tag")
}

func (enc *Encoder) encodeObject(o *Object) error {
	if err := enc.writeUint64(o.Start, "object start"); err != nil {
		return err
	}
	return enc.writeUint32(o.Size, "object size")
}

func (enc *Encoder) writeUint64(v uint64, field string) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := enc.w.Write(buf[:])
	return errors.Wrapf(err, "sym: encode %s", field)
}

func (enc *Encoder) writeUint32(v uint32, field string) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := enc.w.Write(buf[:])
	return errors.Wrapf(err, "sym: encode %s", field)
}

func (enc *Encoder) writeByte(b byte, field string) error {
	_, err := enc.w.Write([]byte{b})
	return errors.Wrapf(err, "sym: encode %s", field)
}

// Decoder reads expression trees and linear expressions produced by Encoder.
//
// Any short read fails the decode of the whole tree; partially built
// subtrees are simply dropped for collection. An unknown tag surfaces as an
// *UnknownTagError rather than terminating the process.
type Decoder struct {
	r          io.Reader
	order      ByteOrder
	readHeader bool
	off        int64
}

// NewDecoder returns a Decoder reading from r. The byte order is taken from
// the stream header.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// ByteOrder returns the byte order recorded in the stream header. It is
// meaningful only after the first successful Decode or DecodeLinear call.
func (dec *Decoder) ByteOrder() ByteOrder {
	return dec.order
}

// Decode reads the next expression tree from the stream.
func (dec *Decoder) Decode() (Expr, error) {
	if err := dec.decodeHeader(); err != nil {
		return nil, err
	}
	return dec.decodeExpr()
}

// DecodeLinear reads the next linear expression from the stream.
func (dec *Decoder) DecodeLinear() (*LinearExpr, error) {
	if err := dec.decodeHeader(); err != nil {
		return nil, err
	}

	constant, err := dec.readUint64("linear constant")
	if err != nil {
		return nil, err
	}
	n, err := dec.readUint32("linear coefficient count")
	if err != nil {
		return nil, err
	}

	le := NewLinearExpr()
	le.constant = int64(constant)
	for i := uint32(0); i < n; i++ {
		v, err := dec.readUint32("linear variable")
		if err != nil {
			return nil, err
		}
		coeff, err := dec.readUint64("linear coefficient")
		if err != nil {
			return nil, err
		}
		if coeff != 0 {
			le.coeff[Var(v)] = int64(coeff)
		}
	}
	return le, nil
}

func (dec *Decoder) decodeHeader() error {
	if dec.readHeader {
		return nil
	}
	marker, err := dec.readByte("byte order marker")
	if err != nil {
		return err
	}
	switch marker {
	case orderMarkerLittle:
		dec.order = LittleEndian
	case orderMarkerBig:
		dec.order = BigEndian
	default:
		return errors.Errorf("sym: invalid byte order marker 0x%02x", marker)
	}
	dec.readHeader = true
	log.Debug.Printf("sym: decoding %s stream", dec.order)
	return nil
}

func (dec *Decoder) decodeExpr() (Expr, error) {
	value, err := dec.readUint64("value")
	if err != nil {
		return nil, err
	}
	size, err := dec.readUint32("size")
	if err != nil {
		return nil, err
	}
	tagOff := dec.off
	tag, err := dec.readByte("tag")
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, errors.Errorf("sym: zero node size at offset %d", tagOff)
	}

	switch tag {
	case tagConstant:
		return &ConstantExpr{Value: int64(value), Size: size}, nil

	case tagBasic:
		v, err := dec.readUint32("variable id")
		if err != nil {
			return nil, err
		}
		return &BasicExpr{Value: int64(value), Size: size, Var: Var(v)}, nil

	case tagCompare:
		op, err := dec.readByte("compare op")
		if err != nil {
			return nil, err
		} else if CompareOp(op) > SGE {
			return nil, errors.Errorf("sym: invalid compare op 0x%02x at offset %d", op, dec.off-1)
		}
		lhs, err := dec.decodeExpr()
		if err != nil {
			return nil, err
		}
		rhs, err := dec.decodeExpr()
		if err != nil {
			return nil, err
		}
		return &CompareExpr{Value: int64(value), Size: size, Op: CompareOp(op), LHS: lhs, RHS: rhs}, nil

	case tagBinary:
		op, err := dec.readByte("binary op")
		if err != nil {
			return nil, err
		} else if BinaryOp(op) > CONCRETE {
			return nil, errors.Errorf("sym: invalid binary op 0x%02x at offset %d", op, dec.off-1)
		}
		lhs, err := dec.decodeExpr()
		if err != nil {
			return nil, err
		}
		rhs, err := dec.decodeExpr()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Value: int64(value), Size: size, Op: BinaryOp(op), LHS: lhs, RHS: rhs}, nil

	case tagUnary:
		op, err := dec.readByte("unary op")
		if err != nil {
			return nil, err
		} else if UnaryOp(op) > SEXT {
			return nil, errors.Errorf("sym: invalid unary op 0x%02x at offset %d", op, dec.off-1)
		}
		child, err := dec.decodeExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Value: int64(value), Size: size, Op: UnaryOp(op), Child: child}, nil

	case tagDeref:
		obj, err := dec.decodeObject()
		if err != nil {
			return nil, err
		}
		addr, err := dec.decodeExpr()
		if err != nil {
			return nil, err
		}
		// Copy incrementally so a forged object size cannot force a huge
		// allocation before truncation is detected.
		var snapshot bytes.Buffer
		if n, err := io.CopyN(&snapshot, dec.r, int64(obj.Size)); err != nil {
			return nil, errors.Wrapf(err, "sym: decode deref snapshot at offset %d", dec.off+n)
		}
		dec.off += int64(obj.Size)
		return &DerefExpr{Value: int64(value), Size: size, Addr: addr, Object: obj, Snapshot: snapshot.Bytes()}, nil

	default:
		log.Debug.Printf("sym: rejecting unknown node tag 0x%02x at offset %d", tag, tagOff)
		return nil, &UnknownTagError{Tag: tag, Offset: tagOff}
	}
}

func (dec *Decoder) decodeObject() (*Object, error) {
	start, err := dec.readUint64("object start")
	if err != nil {
		return nil, err
	}
	size, err := dec.readUint32("object size")
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, errors.Errorf("sym: zero object size at offset %d", dec.off-4)
	}
	return &Object{Start: start, Size: size}, nil
}

func (dec *Decoder) readUint64(field string) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(dec.r, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "sym: decode %s at offset %d", field, dec.off)
	}
	dec.off += 8
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (dec *Decoder) readUint32(field string) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(dec.r, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "sym: decode %s at offset %d", field, dec.off)
	}
	dec.off += 4
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (dec *Decoder) readByte(field string) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(dec.r, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "sym: decode %s at offset %d", field, dec.off)
	}
	dec.off++
	return buf[0], nil
}
