// Package binaryserializer provides pooled, allocation-light helpers for
// reading and writing fixed-width integers. No other package in this
// module imports it; transferhash encodes with encoding/binary directly.
package binaryserializer

import (
	"encoding/binary"
	"io"
	"sync"
)

// bufferPool houses the scratch buffers used for binary reads/writes so that
// hot serialization paths (one per ReserveTransfer, one per export/import
// field) don't allocate a buffer per call.
var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 8)
		return &b
	},
}

// Uint8 reads a single byte from r.
func Uint8(r io.Reader) (uint8, error) {
	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)
	buf := (*bufPtr)[:1]

	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// PutUint8 writes a single byte to w.
func PutUint8(w io.Writer, val uint8) error {
	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)
	buf := (*bufPtr)[:1]

	buf[0] = val
	_, err := w.Write(buf)
	return err
}

// Uint16 reads a two-byte integer from r in the given byte order.
func Uint16(r io.Reader, byteOrder binary.ByteOrder) (uint16, error) {
	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)
	buf := (*bufPtr)[:2]

	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint16(buf), nil
}

// PutUint16 writes val to w using the given byte order.
func PutUint16(w io.Writer, byteOrder binary.ByteOrder, val uint16) error {
	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)
	buf := (*bufPtr)[:2]

	byteOrder.PutUint16(buf, val)
	_, err := w.Write(buf)
	return err
}

// Uint32 reads a four-byte integer from r in the given byte order.
func Uint32(r io.Reader, byteOrder binary.ByteOrder) (uint32, error) {
	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)
	buf := (*bufPtr)[:4]

	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(buf), nil
}

// PutUint32 writes val to w using the given byte order.
func PutUint32(w io.Writer, byteOrder binary.ByteOrder, val uint32) error {
	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)
	buf := (*bufPtr)[:4]

	byteOrder.PutUint32(buf, val)
	_, err := w.Write(buf)
	return err
}

// Uint64 reads an eight-byte integer from r in the given byte order.
func Uint64(r io.Reader, byteOrder binary.ByteOrder) (uint64, error) {
	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)
	buf := (*bufPtr)[:8]

	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(buf), nil
}

// PutUint64 writes val to w using the given byte order.
func PutUint64(w io.Writer, byteOrder binary.ByteOrder, val uint64) error {
	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)
	buf := (*bufPtr)[:8]

	byteOrder.PutUint64(buf, val)
	_, err := w.Write(buf)
	return err
}
