package ir

import "fmt"

type Block struct {
	ID    string
	Stmts []Stmt
	Preds []string
	Succs []string
}

// Jmps 块尾的跳转序列，按书写顺序
func (b *Block) Jmps() []*Jmp {
	var result []*Jmp
	for _, s := range b.Stmts {
		if j, ok := s.(*Jmp); ok {
			result = append(result, j)
		}
	}
	return result
}

// HasPhi phi会让块的前置条件依赖进入边
func (b *Block) HasPhi() bool {
	for _, s := range b.Stmts {
		if _, ok := s.(*Phi); ok {
			return true
		}
	}
	return false
}

type Sub struct {
	Name   string
	Addr   uint64
	Entry  string
	Blocks []*Block

	blockIdx map[string]*Block
}

func (sub *Sub) Block(id string) (*Block, error) {
	if sub.blockIdx == nil {
		sub.buildIndex()
	}
	b, ok := sub.blockIdx[id]
	if !ok {
		return nil, fmt.Errorf("sub %s: no block %q", sub.Name, id)
	}
	return b, nil
}

func (sub *Sub) buildIndex() {
	sub.blockIdx = make(map[string]*Block, len(sub.Blocks))
	for _, b := range sub.Blocks {
		sub.blockIdx[b.ID] = b
	}
}

// ExitBlocks 以ret结尾或没有后继的块
func (sub *Sub) ExitBlocks() []*Block {
	var result []*Block
	for _, b := range sub.Blocks {
		if len(b.Succs) == 0 {
			result = append(result, b)
			continue
		}
		for _, j := range b.Jmps() {
			if j.Kind == JmpRet {
				result = append(result, b)
				break
			}
		}
	}
	return result
}

type Program struct {
	Arch *Arch
	Subs []*Sub

	subIdx map[string]*Sub
}

func (p *Program) Sub(name string) (*Sub, error) {
	if p.subIdx == nil {
		p.subIdx = make(map[string]*Sub, len(p.Subs))
		for _, s := range p.Subs {
			p.subIdx[s.Name] = s
		}
	}
	s, ok := p.subIdx[name]
	if !ok {
		return nil, fmt.Errorf("no subroutine %q", name)
	}
	return s, nil
}
