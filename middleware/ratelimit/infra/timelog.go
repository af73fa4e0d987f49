package infra

import "time"

// timeLog é uma fila dupla (ring buffer) de timestamps em ordem de chegada.
// Inserção no fim e poda no início são O(1) amortizado.
//
// Não é segura para uso concorrente; quem usa segura o lock do shard.
type timeLog struct {
	buf  []time.Time
	head int
	n    int
}

// acima disso, um log que esvaziou devolve o buffer ao GC.
const timeLogKeepCap = 64

func (l *timeLog) len() int { return l.n }

func (l *timeLog) push(t time.Time) {
	if l.n == len(l.buf) {
		l.grow()
	}
	l.buf[(l.head+l.n)%len(l.buf)] = t
	l.n++
}

func (l *timeLog) front() (time.Time, bool) {
	if l.n == 0 {
		return time.Time{}, false
	}
	return l.buf[l.head], true
}

// pruneThrough remove do início todo timestamp t <= cutoff e devolve quantos saíram.
// A janela resultante é o intervalo semiaberto (cutoff, agora].
func (l *timeLog) pruneThrough(cutoff time.Time) int {
	removed := 0
	for l.n > 0 && !l.buf[l.head].After(cutoff) {
		l.buf[l.head] = time.Time{}
		l.head = (l.head + 1) % len(l.buf)
		l.n--
		removed++
	}
	if l.n == 0 {
		l.head = 0
		if cap(l.buf) > timeLogKeepCap {
			l.buf = nil
		}
	}
	return removed
}

func (l *timeLog) grow() {
	size := 2 * len(l.buf)
	if size == 0 {
		size = 4
	}
	buf := make([]time.Time, size)
	for i := 0; i < l.n; i++ {
		buf[i] = l.buf[(l.head+i)%len(l.buf)]
	}
	l.buf = buf
	l.head = 0
}
