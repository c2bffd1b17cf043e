// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the Galactica display protocol wire
// format: framed binary messages over a Unix stream socket, with file
// descriptors carried out-of-band via SCM_RIGHTS.
//
// Each message is an 8-byte little-endian header (4 bytes object ID,
// 2 bytes opcode, 2 bytes total message size including the header)
// followed by 32-bit argument words. Strings are a length word
// followed by the bytes, NUL-terminated and padded to word alignment.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the fixed message header length in bytes.
const HeaderSize = 8

// MaxMessageSize bounds a single message; the size field is 16 bits.
const MaxMessageSize = 1<<16 - 1

// Well-known object IDs bound on every connection. Client-allocated
// IDs start above these.
const (
	ObjectCompositor uint32 = 1
	ObjectShm        uint32 = 2
	ObjectDisplay    uint32 = 3
)

// MinClientID is the lowest object ID a client may allocate.
const MinClientID uint32 = 4

// Request opcodes, per interface.
const (
	CompositorCreateSurface uint16 = 0
	CompositorCreateRegion  uint16 = 1

	ShmCreatePool uint16 = 0

	PoolCreateBuffer uint16 = 0
	PoolResize       uint16 = 1
	PoolDestroy      uint16 = 2

	BufferDestroy uint16 = 0

	SurfaceAttach  uint16 = 0
	SurfaceDamage  uint16 = 1
	SurfaceFrame   uint16 = 2
	SurfaceCommit  uint16 = 3
	SurfaceDestroy uint16 = 4

	RegionAdd      uint16 = 0
	RegionSubtract uint16 = 1
	RegionDestroy  uint16 = 2
)

// Event opcodes, per interface.
const (
	DisplayError uint16 = 0

	ShmFormat uint16 = 0

	CallbackDone uint16 = 0
)

// Message is one protocol message: a target object, an opcode, and the
// raw argument payload.
type Message struct {
	Object  uint32
	Opcode  uint16
	Payload []byte
}

// WriteMessage writes one framed message to w.
func WriteMessage(w io.Writer, m Message) error {
	data, err := m.encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (m Message) encode() ([]byte, error) {
	size := HeaderSize + len(m.Payload)
	if size > MaxMessageSize {
		return nil, fmt.Errorf("message size %d exceeds maximum %d", size, MaxMessageSize)
	}
	data := make([]byte, size)
	binary.LittleEndian.PutUint32(data[0:4], m.Object)
	binary.LittleEndian.PutUint16(data[4:6], m.Opcode)
	binary.LittleEndian.PutUint16(data[6:8], uint16(size))
	copy(data[HeaderSize:], m.Payload)
	return data, nil
}

// ReadMessage reads one framed message from r. A short or malformed
// header is an error; io.EOF at a message boundary passes through
// unwrapped so callers can detect orderly shutdown.
func ReadMessage(r io.Reader) (Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Message{}, io.EOF
		}
		return Message{}, fmt.Errorf("read message header: %w", err)
	}
	m := Message{
		Object: binary.LittleEndian.Uint32(header[0:4]),
		Opcode: binary.LittleEndian.Uint16(header[4:6]),
	}
	size := binary.LittleEndian.Uint16(header[6:8])
	if size < HeaderSize {
		return Message{}, fmt.Errorf("message size %d below header size", size)
	}
	if size > HeaderSize {
		m.Payload = make([]byte, size-HeaderSize)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return Message{}, fmt.Errorf("read message payload: %w", err)
		}
	}
	return m, nil
}

// ArgEncoder builds a message payload from 32-bit words.
type ArgEncoder struct {
	buf []byte
}

// PutUint32 appends one unsigned word.
func (e *ArgEncoder) PutUint32(v uint32) {
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], v)
	e.buf = append(e.buf, w[:]...)
}

// PutInt32 appends one signed word.
func (e *ArgEncoder) PutInt32(v int32) {
	e.PutUint32(uint32(v))
}

// PutString appends a length word followed by the bytes, NUL
// terminated and padded to word alignment.
func (e *ArgEncoder) PutString(s string) {
	e.PutUint32(uint32(len(s) + 1))
	e.buf = append(e.buf, s...)
	pad := 4 - (len(s)+1)%4
	if pad == 4 {
		pad = 0
	}
	e.buf = append(e.buf, make([]byte, 1+pad)...)
}

// Bytes returns the encoded payload.
func (e *ArgEncoder) Bytes() []byte {
	return e.buf
}

// ArgDecoder extracts arguments from a message payload. Decode errors
// are sticky: after the first failure every accessor returns zero and
// Err reports the failure.
type ArgDecoder struct {
	data []byte
	err  error
}

// NewArgDecoder wraps a payload for decoding.
func NewArgDecoder(payload []byte) *ArgDecoder {
	return &ArgDecoder{data: payload}
}

// Uint32 decodes the next unsigned word.
func (d *ArgDecoder) Uint32() uint32 {
	if d.err != nil {
		return 0
	}
	if len(d.data) < 4 {
		d.err = fmt.Errorf("argument truncated: %d bytes left", len(d.data))
		return 0
	}
	v := binary.LittleEndian.Uint32(d.data)
	d.data = d.data[4:]
	return v
}

// Int32 decodes the next signed word.
func (d *ArgDecoder) Int32() int32 {
	return int32(d.Uint32())
}

// String decodes a length-prefixed padded string.
func (d *ArgDecoder) String() string {
	length := d.Uint32()
	if d.err != nil {
		return ""
	}
	if length == 0 {
		d.err = fmt.Errorf("string argument with zero length")
		return ""
	}
	padded := (int(length) + 3) &^ 3
	if len(d.data) < padded {
		d.err = fmt.Errorf("string argument truncated: need %d bytes, have %d", padded, len(d.data))
		return ""
	}
	s := string(d.data[:length-1])
	d.data = d.data[padded:]
	return s
}

// Err returns the first decode failure, if any.
func (d *ArgDecoder) Err() error {
	return d.err
}
