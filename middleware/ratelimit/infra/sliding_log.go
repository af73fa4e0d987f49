package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"sliding-gateway/middleware/ratelimit/domain"
)

// SlidingLog é o rate limiter de janela deslizante baseado em log de timestamps.
//
// Cada (cliente, endpoint) tem um log com os instantes das requisições admitidas.
// Uma requisição é admitida se, depois de descartar tudo que saiu da janela
// (t <= agora-janela), restarem menos entradas que o limite da regra.
//
// As chaves são distribuídas em shards (xxhash); ler-podar-contar-anexar roda
// inteiro sob o lock do shard, então chaves de shards diferentes não se bloqueiam.
type SlidingLog struct {
	rules  *RuleTable
	clock  func() time.Time
	logger *zap.Logger

	shards       []*logShard
	shardCount   int
	maxKeys      int64
	cleanupEvery time.Duration

	// chaves rastreadas em todos os shards
	keys atomic.Int64
}

type logShard struct {
	mu   sync.Mutex
	logs map[domain.Key]*clientLog
}

type clientLog struct {
	times timeLog
}

const defaultShardCount = 64

var keySep = []byte{0}

type SlidingLogOption func(*SlidingLog)

// WithClock troca a fonte de tempo (testes).
func WithClock(now func() time.Time) SlidingLogOption {
	return func(s *SlidingLog) {
		if now != nil {
			s.clock = now
		}
	}
}

func WithShards(n int) SlidingLogOption {
	return func(s *SlidingLog) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithMaxKeys limita quantas chaves podem ser rastreadas no total (0 = sem limite).
func WithMaxKeys(n int) SlidingLogOption {
	return func(s *SlidingLog) {
		if n > 0 {
			s.maxKeys = int64(n)
		}
	}
}

func WithCleanupEvery(d time.Duration) SlidingLogOption {
	return func(s *SlidingLog) { s.cleanupEvery = d }
}

func WithLogger(l *zap.Logger) SlidingLogOption {
	return func(s *SlidingLog) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSlidingLog cria o limiter com a regra padrão. Falha com erro de
// configuração (domain.ErrConfiguration) se limite ou janela não forem positivos.
func NewSlidingLog(def domain.Rule, opts ...SlidingLogOption) (*SlidingLog, error) {
	rules, err := NewRuleTable(def)
	if err != nil {
		return nil, err
	}

	s := &SlidingLog{
		rules:        rules,
		clock:        time.Now,
		logger:       zap.NewNop(),
		shardCount:   defaultShardCount,
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*logShard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &logShard{logs: make(map[domain.Key]*clientLog)}
	}
	return s, nil
}

// AddEndpointRule registra ou substitui a regra do endpoint.
// Não reescreve o histórico já registrado: vale a partir da próxima checagem.
func (s *SlidingLog) AddEndpointRule(endpoint string, limit int, window time.Duration) error {
	return s.rules.Set(endpoint, domain.Rule{Limit: limit, Window: window})
}

// Rule devolve a regra efetiva do endpoint.
func (s *SlidingLog) Rule(endpoint string) domain.Rule { return s.rules.Resolve(endpoint) }

func (s *SlidingLog) Rules() *RuleTable { return s.rules }

// IsAllowed é o atalho booleano de Check.
func (s *SlidingLog) IsAllowed(client, endpoint string) bool {
	return s.Check(domain.Key{Client: client, Endpoint: endpoint}).Allowed
}

// Check implementa domain.Limiter.
func (s *SlidingLog) Check(key domain.Key) domain.Decision {
	rule := s.rules.Resolve(key.Endpoint)
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	// lido sob o lock: os logs ficam sempre em ordem não decrescente
	now := s.clock()

	lg, ok := sh.logs[key]
	if !ok && !s.reserveKey() {
		// teto atingido: varre todos os shards (sem segurar este) e tenta de novo
		sh.mu.Unlock()
		s.Cleanup()
		sh.mu.Lock()

		now = s.clock()
		if lg, ok = sh.logs[key]; !ok && !s.reserveKey() {
			s.logger.Debug("max keys reached, request not tracked",
				zap.Stringer("key", key),
				zap.Int64("max_keys", s.maxKeys))
			return domain.Decision{Rule: rule, Untracked: true}
		}
	}
	if !ok {
		lg = &clientLog{}
		sh.logs[key] = lg
	}

	lg.times.pruneThrough(now.Add(-rule.Window))

	count := lg.times.len()
	if count < rule.Limit {
		lg.times.push(now)
		oldest, _ := lg.times.front()
		return domain.Decision{
			Allowed:   true,
			Rule:      rule,
			Count:     count + 1,
			Remaining: rule.Limit - count - 1,
			ResetAt:   oldest.Add(rule.Window),
		}
	}

	oldest, _ := lg.times.front()
	resetAt := oldest.Add(rule.Window)
	return domain.Decision{
		Rule:       rule,
		Count:      count,
		ResetAt:    resetAt,
		RetryAfter: resetAt.Sub(now),
	}
}

// Reset descarta o log de uma chave.
func (s *SlidingLog) Reset(key domain.Key) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	if _, ok := sh.logs[key]; ok {
		delete(sh.logs, key)
		s.keys.Add(-1)
	}
	sh.mu.Unlock()
}

// Len devolve quantas chaves estão sendo rastreadas (inclusive logs ainda não podados).
func (s *SlidingLog) Len() int { return int(s.keys.Load()) }

// Cleanup poda todos os logs pela regra atual do endpoint e remove os que ficaram vazios.
// Devolve quantas chaves saíram.
func (s *SlidingLog) Cleanup() int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		removed += s.sweep(sh, s.clock())
		sh.mu.Unlock()
	}
	return removed
}

// StartJanitor inicia uma goroutine que chama Cleanup periodicamente.
// Pare cancelando o contexto.
func (s *SlidingLog) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := s.Cleanup(); n > 0 {
					s.logger.Debug("sliding log cleanup",
						zap.Int("removed", n),
						zap.Int("tracked", s.Len()))
				}
			}
		}
	}()
}

func (s *SlidingLog) CleanupEvery() time.Duration { return s.cleanupEvery }

func (s *SlidingLog) shardFor(key domain.Key) *logShard {
	h := xxhash.New()
	_, _ = h.WriteString(key.Client)
	_, _ = h.Write(keySep)
	_, _ = h.WriteString(key.Endpoint)
	return s.shards[h.Sum64()%uint64(len(s.shards))]
}

// reserveKey conta uma chave nova; falha se o teto já foi atingido.
func (s *SlidingLog) reserveKey() bool {
	if s.maxKeys <= 0 {
		s.keys.Add(1)
		return true
	}
	for {
		n := s.keys.Load()
		if n >= s.maxKeys {
			return false
		}
		if s.keys.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// sweep exige o lock do shard.
func (s *SlidingLog) sweep(sh *logShard, now time.Time) int {
	removed := 0
	for k, lg := range sh.logs {
		lg.times.pruneThrough(now.Add(-s.rules.Resolve(k.Endpoint).Window))
		if lg.times.len() == 0 {
			delete(sh.logs, k)
			removed++
		}
	}
	s.keys.Add(int64(-removed))
	return removed
}
