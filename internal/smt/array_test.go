package smt

import (
	"testing"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayStoreSelect(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	var (
		mem  = NewMemArray("t_mem", 64)
		addr = NewBitVecValInt64(0x1000, 64)
		val  = NewBitVecValInt64(0xAB, 8)
	)

	stored, err := mem.Store(addr, val)
	require.Nil(t, err)
	got, err := stored.Select(addr)
	require.Nil(t, err)

	// store后同地址select等于写入值
	solver := NewSolver()
	err = solver.Assert(got.Ne(val))
	require.Nil(t, err)
	status, _, err := solver.Check()
	require.Nil(t, err)
	assert.Equal(t, StatusUnsat, status)
}

func TestArrayStoreIsFunctional(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	var (
		mem  = NewMemArray("f_mem", 64)
		addr = NewBitVecValInt64(0x2000, 64)
		v1   = NewBitVecValInt64(1, 8)
		v2   = NewBitVecValInt64(2, 8)
	)

	m1, err := mem.Store(addr, v1)
	require.Nil(t, err)
	m2, err := mem.Store(addr, v2)
	require.Nil(t, err)

	// 两次store互不影响，原array保持未解释
	g1, err := m1.Select(addr)
	require.Nil(t, err)
	g2, err := m2.Select(addr)
	require.Nil(t, err)

	solver := NewSolver()
	err = solver.Assert(g1.Eq(v1), g2.Eq(v2))
	require.Nil(t, err)
	status, _, err := solver.Check()
	require.Nil(t, err)
	assert.Equal(t, StatusSat, status)
}

func TestArrayDomains(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	mem := NewMemArray("d_mem", 32)
	assert.Equal(t, uint32(32), mem.GetDomain())
	assert.Equal(t, uint32(ByteWidth), mem.GetRange())
}
