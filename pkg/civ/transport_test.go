package civ

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortNonBlockingRead(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	p := NewPort(local)
	defer p.Close()

	buf := make([]byte, 64)
	n, err := p.Read(buf)
	assert.Equal(t, 0, n, "nothing has arrived")
	assert.NoError(t, err)

	wire := reply(CmdReadFreq, 0x00, 0x40, 0x07, 0x14, 0x00)
	go remote.Write(wire)

	var got []byte
	require.Eventually(t, func() bool {
		n, _ := p.Read(buf)
		got = append(got, buf[:n]...)
		return len(got) == len(wire)
	}, time.Second, time.Millisecond)
	assert.Equal(t, wire, got)
}

func TestPortPartialRead(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	p := NewPort(local)
	defer p.Close()

	wire := NewRequest(DefaultRadioAddress, CmdReadFreq).Bytes()
	go remote.Write(wire)

	var got []byte
	small := make([]byte, 2)
	require.Eventually(t, func() bool {
		n, _ := p.Read(small)
		got = append(got, small[:n]...)
		return len(got) == len(wire)
	}, time.Second, time.Millisecond)
	assert.Equal(t, wire, got)
}

func TestPortWriteAndClose(t *testing.T) {
	local, remote := net.Pipe()
	p := NewPort(local)

	done := make(chan []byte)
	go func() {
		buf := make([]byte, 16)
		n, _ := remote.Read(buf)
		done <- buf[:n]
	}()

	wire := NewRequest(DefaultRadioAddress, CmdTX, SubTuner, TunerStart).Bytes()
	_, err := p.Write(wire)
	require.NoError(t, err)
	assert.Equal(t, wire, <-done)

	require.NoError(t, p.Close())
	assert.NoError(t, p.Close(), "close is idempotent")
	assert.NoError(t, p.Err())
}

func TestPortReportsStreamEnd(t *testing.T) {
	local, remote := net.Pipe()
	p := NewPort(local)
	defer p.Close()

	remote.Close()
	require.Eventually(t, func() bool {
		_, err := p.Read(make([]byte, 8))
		return err == io.EOF
	}, time.Second, time.Millisecond)
}
