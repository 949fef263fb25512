// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package leb128 reads and writes integers encoded in the Little Endian
// Base 128 (LEB128) format: https://en.wikipedia.org/wiki/LEB128
package leb128

import (
	"io"
)

// ReadVarUint32 reads a LEB128 encoded unsigned 32-bit integer from r.
func ReadVarUint32(r io.Reader) (uint32, error) {
	var (
		b     = make([]byte, 1)
		shift uint
		res   uint32
		err   error
	)
	for {
		if _, err = io.ReadFull(r, b); err != nil {
			return res, err
		}

		cur := uint32(b[0])
		res |= (cur & 0x7f) << shift
		if cur&0x80 == 0 {
			return res, nil
		}
		shift += 7
	}
}

// ReadVarint32 reads a LEB128 encoded signed 32-bit integer from r.
func ReadVarint32(r io.Reader) (int32, error) {
	n, err := ReadVarint64(r)
	return int32(n), err
}

// ReadVarint64 reads a LEB128 encoded signed 64-bit integer from r.
func ReadVarint64(r io.Reader) (int64, error) {
	var (
		b     = make([]byte, 1)
		shift uint
		sign  int64 = -1
		res   int64
		err   error
	)

	for {
		if _, err = io.ReadFull(r, b); err != nil {
			return res, err
		}

		cur := int64(b[0])
		res |= (cur & 0x7f) << shift
		shift += 7
		sign <<= 7
		if cur&0x80 == 0 {
			break
		}
	}

	if ((sign >> 1) & res) != 0 {
		res |= sign
	}
	return res, nil
}

// WriteVarUint32 writes v to w as a LEB128 encoded unsigned 32-bit integer.
func WriteVarUint32(w io.Writer, v uint32) error {
	buf := make([]byte, 0, 5)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			break
		}
	}
	_, err := w.Write(buf)
	return err
}

// WriteVarint32 writes v to w as a LEB128 encoded signed 32-bit integer.
func WriteVarint32(w io.Writer, v int32) error {
	return WriteVarint64(w, int64(v))
}

// WriteVarint64 writes v to w as a LEB128 encoded signed 64-bit integer.
func WriteVarint64(w io.Writer, v int64) error {
	buf := make([]byte, 0, 10)
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	_, err := w.Write(buf)
	return err
}

// AppendVarUint32 appends v to buf as a LEB128 encoded unsigned 32-bit
// integer and returns the extended slice, for callers that build up a
// binary in memory rather than through an io.Writer.
func AppendVarUint32(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

// AppendVarint32 appends v to buf as a LEB128 encoded signed 32-bit integer.
func AppendVarint32(buf []byte, v int32) []byte {
	x := int64(v)
	more := true
	for more {
		b := byte(x & 0x7f)
		x >>= 7
		if (x == 0 && b&0x40 == 0) || (x == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}
