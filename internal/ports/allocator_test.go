package ports

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainpad/internal/errors"
)

func TestAllocateDistinctPorts(t *testing.T) {
	a := NewAllocatorAt(23000, 100)

	first, err := a.Allocate()
	require.NoError(t, err)
	second, err := a.Allocate()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, a.Reserved(first))
	assert.True(t, a.Reserved(second))
}

func TestAllocateSkipsBoundPort(t *testing.T) {
	a := NewAllocatorAt(23200, 100)

	ln, err := net.Listen("tcp", "127.0.0.1:23200")
	require.NoError(t, err)
	defer ln.Close()

	port, err := a.Allocate()
	require.NoError(t, err)
	assert.NotEqual(t, 23200, port)
}

func TestAllocateExhausted(t *testing.T) {
	a := NewAllocatorAt(23300, 2)

	_, err := a.Allocate()
	require.NoError(t, err)
	_, err = a.Allocate()
	require.NoError(t, err)

	_, err = a.Allocate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrPortExhausted))
}

func TestReleaseMakesPortReusable(t *testing.T) {
	a := NewAllocatorAt(23400, 1)

	port, err := a.Allocate()
	require.NoError(t, err)

	a.Release(port)
	again, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, port, again)
}

func TestClaim(t *testing.T) {
	a := NewAllocatorAt(23500, 100)

	require.NoError(t, a.Claim(23510))
	assert.True(t, a.Reserved(23510))

	// Same session cannot claim it twice
	err := a.Claim(23510)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrPortUnavailable))
}

func TestClaimBoundPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	a := NewAllocator()
	claimErr := a.Claim(port)
	require.Error(t, claimErr)
	assert.True(t, errors.HasCode(claimErr, errors.ErrPortUnavailable), fmt.Sprint(claimErr))
}

func TestClaimRejectsInvalidPort(t *testing.T) {
	a := NewAllocator()
	assert.Error(t, a.Claim(0))
	assert.Error(t, a.Claim(70000))
}
