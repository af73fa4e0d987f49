package infra

import (
	"context"
	"sync"
)

// SlotPool limita quantas requisições ficam em voo ao mesmo tempo.
// Implementa domain.SlotPool; cada vaga ocupada é um item no buffer do channel.
type SlotPool struct {
	slots chan struct{}
}

// NewSlotPool cria o pool com capacidade max (mínimo 1).
func NewSlotPool(max int) *SlotPool {
	if max < 1 {
		max = 1
	}
	return &SlotPool{slots: make(chan struct{}, max)}
}

// Acquire ocupa uma vaga ou desiste quando ctx encerra. Um ctx já encerrado
// nunca ocupa vaga, mesmo com o pool livre.
// O release devolvido é idempotente.
func (p *SlotPool) Acquire(ctx context.Context) (func(), bool) {
	if ctx.Err() != nil {
		return nil, false
	}

	select {
	case p.slots <- struct{}{}:
		return p.releaser(), true
	default:
	}

	select {
	case p.slots <- struct{}{}:
		return p.releaser(), true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *SlotPool) releaser() func() {
	var once sync.Once
	return func() { once.Do(func() { <-p.slots }) }
}

// InUse devolve quantas vagas estão ocupadas agora.
func (p *SlotPool) InUse() int { return len(p.slots) }

// Capacity devolve o total de vagas.
func (p *SlotPool) Capacity() int { return cap(p.slots) }
