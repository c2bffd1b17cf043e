// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// ErrNoFD means a request that logically carries a descriptor arrived
// without one in the ancillary stream.
var ErrNoFD = errors.New("protocol: no file descriptor received")

// maxPendingFDs bounds descriptors queued between reads. Only
// create_pool carries an fd, so anything beyond a small backlog is a
// misbehaving client.
const maxPendingFDs = 8

// Conn frames messages over a Unix stream socket and tracks file
// descriptors received via SCM_RIGHTS. Descriptors are queued in
// arrival order; the dispatcher claims one with TakeFD when it handles
// the request that carries it.
//
// A Conn is not safe for concurrent readers. One goroutine reads, one
// may write; that matches the server's reader/dispatcher split.
type Conn struct {
	uc  *net.UnixConn
	buf []byte
	fds []int
}

// NewConn wraps an established Unix connection.
func NewConn(uc *net.UnixConn) *Conn {
	return &Conn{uc: uc}
}

// ReadMessage returns the next framed message, receiving more stream
// data and ancillary descriptors as needed. Returns io.EOF when the
// peer closed the connection at a message boundary.
func (c *Conn) ReadMessage() (Message, error) {
	for {
		if m, ok, err := c.parseMessage(); err != nil || ok {
			return m, err
		}
		if err := c.readMore(); err != nil {
			if err == io.EOF && len(c.buf) == 0 {
				return Message{}, io.EOF
			}
			return Message{}, err
		}
	}
}

// parseMessage extracts one complete message from the stream buffer.
func (c *Conn) parseMessage() (Message, bool, error) {
	if len(c.buf) < HeaderSize {
		return Message{}, false, nil
	}
	size := int(binary.LittleEndian.Uint16(c.buf[6:8]))
	if size < HeaderSize {
		return Message{}, false, fmt.Errorf("message size %d below header size", size)
	}
	if len(c.buf) < size {
		return Message{}, false, nil
	}
	m := Message{
		Object: binary.LittleEndian.Uint32(c.buf[0:4]),
		Opcode: binary.LittleEndian.Uint16(c.buf[4:6]),
	}
	if size > HeaderSize {
		m.Payload = append([]byte(nil), c.buf[HeaderSize:size]...)
	}
	c.buf = c.buf[size:]
	return m, true, nil
}

// readMore performs one recvmsg, appending stream bytes to the buffer
// and any SCM_RIGHTS descriptors to the fd queue.
func (c *Conn) readMore() error {
	data := make([]byte, 4096)
	oob := make([]byte, unix.CmsgSpace(4*maxPendingFDs))
	n, oobn, _, _, err := c.uc.ReadMsgUnix(data, oob)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return io.EOF
		}
		return fmt.Errorf("receive: %w", err)
	}
	if n == 0 && oobn == 0 {
		return io.EOF
	}
	c.buf = append(c.buf, data[:n]...)

	if oobn > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return fmt.Errorf("parse control message: %w", err)
		}
		for _, cmsg := range cmsgs {
			fds, err := unix.ParseUnixRights(&cmsg)
			if err != nil {
				continue
			}
			for _, fd := range fds {
				if len(c.fds) >= maxPendingFDs {
					unix.Close(fd)
					continue
				}
				c.fds = append(c.fds, fd)
			}
		}
	}
	return nil
}

// TakeFD claims the oldest received descriptor. The caller owns it.
func (c *Conn) TakeFD() (int, error) {
	if len(c.fds) == 0 {
		return -1, ErrNoFD
	}
	fd := c.fds[0]
	c.fds = c.fds[1:]
	return fd, nil
}

// WriteMessage sends one framed message.
func (c *Conn) WriteMessage(m Message) error {
	return WriteMessage(c.uc, m)
}

// WriteMessageWithFD sends one framed message with a descriptor in the
// same sendmsg, so the receiver's fd queue stays aligned with the
// request stream.
func (c *Conn) WriteMessageWithFD(m Message, fd int) error {
	data, err := m.encode()
	if err != nil {
		return err
	}
	rights := unix.UnixRights(fd)
	if _, _, err := c.uc.WriteMsgUnix(data, rights, nil); err != nil {
		return fmt.Errorf("send with descriptor: %w", err)
	}
	return nil
}

// Close closes the connection and any unclaimed descriptors.
func (c *Conn) Close() error {
	for _, fd := range c.fds {
		unix.Close(fd)
	}
	c.fds = nil
	return c.uc.Close()
}
