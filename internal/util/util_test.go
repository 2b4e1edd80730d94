package util

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"wpcheck/internal/ir"
)

func hashSub(addend int64) *ir.Sub {
	return &ir.Sub{
		Name:  "f",
		Entry: "b0",
		Blocks: []*ir.Block{{
			ID: "b0",
			Stmts: []ir.Stmt{
				&ir.Def{
					ID:  "t0",
					Lhs: ir.Var{Name: "r0", Width: 64},
					Rhs: &ir.BinOp{
						Op: ir.OpAdd,
						L:  &ir.VarRef{Var: ir.Var{Name: "r0", Width: 64}},
						R:  &ir.Const{Val: big.NewInt(addend), Width: 64},
					},
				},
				&ir.Jmp{ID: "t1", Kind: ir.JmpRet},
			},
		}},
	}
}

func TestCodeHashDeterministic(t *testing.T) {
	a := CodeHash(hashSub(1))
	b := CodeHash(hashSub(1))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestCodeHashSensitive(t *testing.T) {
	assert.NotEqual(t, CodeHash(hashSub(1)), CodeHash(hashSub(2)))

	// 后继顺序不影响哈希
	x := hashSub(1)
	y := hashSub(1)
	x.Blocks[0].Succs = []string{"b1", "b2"}
	y.Blocks[0].Succs = []string{"b2", "b1"}
	assert.Equal(t, CodeHash(x), CodeHash(y))
}
