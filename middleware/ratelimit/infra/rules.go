package infra

import (
	"fmt"
	"strings"
	"sync"

	"sliding-gateway/middleware/ratelimit/domain"
)

// RuleTable guarda a regra padrão e as regras específicas por endpoint.
//
// Leituras (Resolve) não se bloqueiam entre si; escritas são esperadas só na
// configuração, mas continuam seguras se acontecerem com tráfego.
type RuleTable struct {
	mu    sync.RWMutex
	def   domain.Rule
	rules map[string]domain.Rule
}

func NewRuleTable(def domain.Rule) (*RuleTable, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("default rule: %w", err)
	}
	return &RuleTable{
		def:   def,
		rules: make(map[string]domain.Rule),
	}, nil
}

// Set registra ou substitui a regra do endpoint.
func (t *RuleTable) Set(endpoint string, rule domain.Rule) error {
	if strings.TrimSpace(endpoint) == "" {
		return domain.ErrInvalidEndpoint
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("endpoint %q: %w", endpoint, err)
	}

	t.mu.Lock()
	t.rules[endpoint] = rule
	t.mu.Unlock()
	return nil
}

// Resolve devolve a regra do endpoint, ou a padrão se não houver uma registrada.
func (t *RuleTable) Resolve(endpoint string) domain.Rule {
	t.mu.RLock()
	rule, ok := t.rules[endpoint]
	t.mu.RUnlock()
	if ok {
		return rule
	}
	return t.def
}

// Has informa se existe regra específica para o endpoint.
func (t *RuleTable) Has(endpoint string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rules[endpoint]
	return ok
}

func (t *RuleTable) Default() domain.Rule { return t.def }

// Endpoints devolve uma cópia das regras específicas.
func (t *RuleTable) Endpoints() map[string]domain.Rule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]domain.Rule, len(t.rules))
	for k, v := range t.rules {
		out[k] = v
	}
	return out
}
