package ir

import (
	"encoding/json"
	"math/big"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// lifter导出的CFG dump，json格式
// 表达式是带kind标签的嵌套对象

type jsonExp struct {
	Kind   string   `json:"kind"`
	Val    string   `json:"val,omitempty"`
	Width  uint32   `json:"width,omitempty"`
	Var    *Var     `json:"var,omitempty"`
	Op     string   `json:"op,omitempty"`
	L      *jsonExp `json:"l,omitempty"`
	R      *jsonExp `json:"r,omitempty"`
	E      *jsonExp `json:"e,omitempty"`
	Cast   string   `json:"cast,omitempty"`
	Mem    *jsonExp `json:"mem,omitempty"`
	Addr   *jsonExp `json:"addr,omitempty"`
	Value  *jsonExp `json:"value,omitempty"`
	Endian string   `json:"endian,omitempty"`
	Bytes  uint32   `json:"bytes,omitempty"`
	Cond   *jsonExp `json:"cond,omitempty"`
	Then   *jsonExp `json:"then,omitempty"`
	Else   *jsonExp `json:"else,omitempty"`
	Hint   string   `json:"hint,omitempty"`
}

type jsonStmt struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Lhs       *Var               `json:"lhs,omitempty"`
	Rhs       *jsonExp           `json:"rhs,omitempty"`
	Jmp       string             `json:"jmp,omitempty"`
	Cond      *jsonExp           `json:"cond,omitempty"`
	Direct    string             `json:"direct,omitempty"`
	Sym       string             `json:"sym,omitempty"`
	Indirect  *jsonExp           `json:"indirect,omitempty"`
	Return    string             `json:"return,omitempty"`
	Interrupt int                `json:"interrupt,omitempty"`
	Phi       map[string]jsonExp `json:"phi,omitempty"`
}

type jsonBlock struct {
	ID    string     `json:"id"`
	Stmts []jsonStmt `json:"stmts"`
	Preds []string   `json:"preds,omitempty"`
	Succs []string   `json:"succs,omitempty"`
}

type jsonSub struct {
	Name   string      `json:"name"`
	Addr   uint64      `json:"addr"`
	Entry  string      `json:"entry"`
	Blocks []jsonBlock `json:"blocks"`
}

type jsonProgram struct {
	Arch *Arch     `json:"arch"`
	Subs []jsonSub `json:"subs"`
}

// LoadProgram 读取lifter的CFG dump
func LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return ParseProgram(data)
}

func ParseProgram(data []byte) (*Program, error) {
	var jp jsonProgram
	if err := json.Unmarshal(data, &jp); err != nil {
		return nil, errors.Wrap(err, "decode program")
	}
	if jp.Arch == nil {
		return nil, errors.New("program has no arch metadata")
	}
	if err := jp.Arch.Validate(); err != nil {
		return nil, err
	}
	p := &Program{Arch: jp.Arch}
	for i := range jp.Subs {
		sub, err := decodeSub(&jp.Subs[i])
		if err != nil {
			return nil, errors.Wrapf(err, "sub %s", jp.Subs[i].Name)
		}
		p.Subs = append(p.Subs, sub)
	}
	log.Infof("loaded program: arch %s, %d subroutines", jp.Arch.Name, len(p.Subs))
	return p, nil
}

func decodeSub(js *jsonSub) (*Sub, error) {
	sub := &Sub{
		Name:  js.Name,
		Addr:  js.Addr,
		Entry: js.Entry,
	}
	seen := make(map[string]bool, len(js.Blocks))
	for i := range js.Blocks {
		jb := &js.Blocks[i]
		if seen[jb.ID] {
			return nil, errors.Errorf("duplicate block id %q", jb.ID)
		}
		seen[jb.ID] = true
		block := &Block{
			ID:    jb.ID,
			Preds: jb.Preds,
			Succs: jb.Succs,
		}
		for k := range jb.Stmts {
			stmt, err := decodeStmt(&jb.Stmts[k])
			if err != nil {
				return nil, errors.Wrapf(err, "block %s", jb.ID)
			}
			block.Stmts = append(block.Stmts, stmt)
		}
		sub.Blocks = append(sub.Blocks, block)
	}
	if sub.Entry == "" && len(sub.Blocks) > 0 {
		sub.Entry = sub.Blocks[0].ID
	}
	if !seen[sub.Entry] {
		return nil, errors.Errorf("entry block %q not found", sub.Entry)
	}
	for _, b := range sub.Blocks {
		for _, succ := range b.Succs {
			if !seen[succ] {
				return nil, errors.Errorf("block %s: unknown successor %q", b.ID, succ)
			}
		}
	}
	return sub, nil
}

func decodeStmt(js *jsonStmt) (Stmt, error) {
	switch js.Kind {
	case "def":
		if js.Lhs == nil || js.Rhs == nil {
			return nil, errors.Errorf("def %s: missing lhs or rhs", js.ID)
		}
		rhs, err := decodeExp(js.Rhs)
		if err != nil {
			return nil, err
		}
		return &Def{ID: js.ID, Lhs: *js.Lhs, Rhs: rhs}, nil
	case "jmp":
		j := &Jmp{
			ID:        js.ID,
			Kind:      JmpKind(js.Jmp),
			Interrupt: js.Interrupt,
			Target: Target{
				Direct: js.Direct,
				Sym:    js.Sym,
				Return: js.Return,
			},
		}
		switch j.Kind {
		case JmpGoto, JmpCall, JmpRet, JmpInt:
		default:
			return nil, errors.Errorf("jmp %s: unknown kind %q", js.ID, js.Jmp)
		}
		if js.Cond != nil {
			cond, err := decodeExp(js.Cond)
			if err != nil {
				return nil, err
			}
			j.Cond = cond
		}
		if js.Indirect != nil {
			ind, err := decodeExp(js.Indirect)
			if err != nil {
				return nil, err
			}
			j.Target.Indirect = ind
		}
		return j, nil
	case "phi":
		if js.Lhs == nil {
			return nil, errors.Errorf("phi %s: missing lhs", js.ID)
		}
		phi := &Phi{ID: js.ID, Lhs: *js.Lhs, Values: make(map[string]Exp, len(js.Phi))}
		for pred := range js.Phi {
			e := js.Phi[pred]
			exp, err := decodeExp(&e)
			if err != nil {
				return nil, err
			}
			phi.Values[pred] = exp
		}
		return phi, nil
	}
	return nil, errors.Errorf("stmt %s: unknown kind %q", js.ID, js.Kind)
}

func decodeExp(je *jsonExp) (Exp, error) {
	switch je.Kind {
	case "const":
		val, ok := new(big.Int).SetString(je.Val, 0)
		if !ok {
			return nil, errors.Errorf("bad constant %q", je.Val)
		}
		if je.Width == 0 {
			return nil, errors.Errorf("constant %q has no width", je.Val)
		}
		return &Const{Val: val, Width: je.Width}, nil
	case "var":
		if je.Var == nil {
			return nil, errors.New("var exp without var")
		}
		return &VarRef{Var: *je.Var}, nil
	case "binop":
		l, err := decodeExp(je.L)
		if err != nil {
			return nil, err
		}
		r, err := decodeExp(je.R)
		if err != nil {
			return nil, err
		}
		return &BinOp{Op: BinOpKind(je.Op), L: l, R: r}, nil
	case "unop":
		e, err := decodeExp(je.E)
		if err != nil {
			return nil, err
		}
		return &UnOp{Op: UnOpKind(je.Op), E: e}, nil
	case "cast":
		e, err := decodeExp(je.E)
		if err != nil {
			return nil, err
		}
		return &Cast{Kind: CastKind(je.Cast), Width: je.Width, E: e}, nil
	case "load":
		mem, err := decodeExp(je.Mem)
		if err != nil {
			return nil, err
		}
		addr, err := decodeExp(je.Addr)
		if err != nil {
			return nil, err
		}
		return &Load{Mem: mem, Addr: addr, Endian: decodeEndian(je.Endian), Bytes: je.Bytes}, nil
	case "store":
		mem, err := decodeExp(je.Mem)
		if err != nil {
			return nil, err
		}
		addr, err := decodeExp(je.Addr)
		if err != nil {
			return nil, err
		}
		val, err := decodeExp(je.Value)
		if err != nil {
			return nil, err
		}
		return &Store{Mem: mem, Addr: addr, Val: val, Endian: decodeEndian(je.Endian), Bytes: je.Bytes}, nil
	case "ite":
		cond, err := decodeExp(je.Cond)
		if err != nil {
			return nil, err
		}
		then, err := decodeExp(je.Then)
		if err != nil {
			return nil, err
		}
		els, err := decodeExp(je.Else)
		if err != nil {
			return nil, err
		}
		return &IteExp{Cond: cond, Then: then, Else: els}, nil
	case "unknown":
		return &Unknown{Hint: je.Hint, Width: je.Width}, nil
	}
	return nil, errors.Errorf("unknown exp kind %q", je.Kind)
}

func decodeEndian(s string) Endian {
	if s == "big" {
		return BigEndian
	}
	return LittleEndian
}
