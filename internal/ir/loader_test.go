package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProgram = `{
  "arch": {
    "name": "test64",
    "word_size": 64,
    "ptr_size": 64,
    "endian": 0,
    "regs": ["r0", "r1", "sp"],
    "sp": "sp",
    "ret_reg": "r0",
    "caller_saved": ["r0", "r1"],
    "arg_regs": ["r0", "r1"]
  },
  "subs": [
    {
      "name": "incr",
      "addr": 4096,
      "entry": "b0",
      "blocks": [
        {
          "id": "b0",
          "stmts": [
            {
              "id": "t0",
              "kind": "def",
              "lhs": {"name": "r0", "width": 64},
              "rhs": {
                "kind": "binop",
                "op": "add",
                "l": {"kind": "var", "var": {"name": "r0", "width": 64}},
                "r": {"kind": "const", "val": "0x1", "width": 64}
              }
            },
            {"id": "t1", "kind": "jmp", "jmp": "ret"}
          ]
        }
      ]
    }
  ]
}`

func TestParseProgram(t *testing.T) {
	p, err := ParseProgram([]byte(sampleProgram))
	require.Nil(t, err)
	require.NotNil(t, p.Arch)
	assert.Equal(t, uint32(64), p.Arch.WordSize)

	sub, err := p.Sub("incr")
	require.Nil(t, err)
	assert.Equal(t, "b0", sub.Entry)
	require.Len(t, sub.Blocks, 1)

	block, err := sub.Block("b0")
	require.Nil(t, err)
	require.Len(t, block.Stmts, 2)

	def, ok := block.Stmts[0].(*Def)
	require.True(t, ok)
	assert.Equal(t, "r0", def.Lhs.Name)
	binop, ok := def.Rhs.(*BinOp)
	require.True(t, ok)
	assert.Equal(t, OpAdd, binop.Op)
	c, ok := binop.R.(*Const)
	require.True(t, ok)
	assert.Equal(t, int64(1), c.Val.Int64())

	jmp, ok := block.Stmts[1].(*Jmp)
	require.True(t, ok)
	assert.Equal(t, JmpRet, jmp.Kind)

	exits := sub.ExitBlocks()
	require.Len(t, exits, 1)
	assert.Equal(t, "b0", exits[0].ID)

	_, err = p.Sub("missing")
	assert.NotNil(t, err)
}

func TestParseProgramErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"no arch", `{"subs": []}`},
		{"zero word size", `{"arch": {"name": "x", "word_size": 0, "regs": ["r0"]}, "subs": []}`},
		{"empty regs", `{"arch": {"name": "x", "word_size": 64, "regs": []}, "subs": []}`},
		{"bad sp", `{"arch": {"name": "x", "word_size": 64, "regs": ["r0"], "sp": "rsp"}, "subs": []}`},
		{"duplicate block", `{
			"arch": {"name": "x", "word_size": 64, "regs": ["r0"]},
			"subs": [{"name": "f", "entry": "b0", "blocks": [
				{"id": "b0", "stmts": []}, {"id": "b0", "stmts": []}]}]}`},
		{"unknown successor", `{
			"arch": {"name": "x", "word_size": 64, "regs": ["r0"]},
			"subs": [{"name": "f", "entry": "b0", "blocks": [
				{"id": "b0", "stmts": [], "succs": ["b9"]}]}]}`},
		{"missing entry", `{
			"arch": {"name": "x", "word_size": 64, "regs": ["r0"]},
			"subs": [{"name": "f", "entry": "b7", "blocks": [
				{"id": "b0", "stmts": []}]}]}`},
		{"bad jmp kind", `{
			"arch": {"name": "x", "word_size": 64, "regs": ["r0"]},
			"subs": [{"name": "f", "entry": "b0", "blocks": [
				{"id": "b0", "stmts": [{"id": "t0", "kind": "jmp", "jmp": "longjmp"}]}]}]}`},
		{"const without width", `{
			"arch": {"name": "x", "word_size": 64, "regs": ["r0"]},
			"subs": [{"name": "f", "entry": "b0", "blocks": [
				{"id": "b0", "stmts": [{"id": "t0", "kind": "def",
					"lhs": {"name": "r0", "width": 64},
					"rhs": {"kind": "const", "val": "1"}}]}]}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseProgram([]byte(tc.src))
			assert.NotNil(t, err)
		})
	}
}

func TestDefaultEntry(t *testing.T) {
	src := `{
		"arch": {"name": "x", "word_size": 64, "regs": ["r0"]},
		"subs": [{"name": "f", "blocks": [{"id": "first", "stmts": []}]}]}`
	p, err := ParseProgram([]byte(src))
	require.Nil(t, err)
	sub, err := p.Sub("f")
	require.Nil(t, err)
	assert.Equal(t, "first", sub.Entry)
}

func TestHasPhiAndJmps(t *testing.T) {
	src := `{
		"arch": {"name": "x", "word_size": 64, "regs": ["r0"]},
		"subs": [{"name": "f", "entry": "b0", "blocks": [
			{"id": "b0", "stmts": [
				{"id": "t0", "kind": "phi", "lhs": {"name": "r0", "width": 64},
					"phi": {"p1": {"kind": "const", "val": "1", "width": 64}}},
				{"id": "t1", "kind": "jmp", "jmp": "goto", "direct": "b0"}
			]}]}]}`
	p, err := ParseProgram([]byte(src))
	require.Nil(t, err)
	sub, err := p.Sub("f")
	require.Nil(t, err)
	block, err := sub.Block("b0")
	require.Nil(t, err)
	assert.True(t, block.HasPhi())
	require.Len(t, block.Jmps(), 1)
	assert.Equal(t, "b0", block.Jmps()[0].Target.Direct)
	assert.False(t, block.Jmps()[0].IsIndirect())
}
