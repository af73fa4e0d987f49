package domain

import (
	"errors"
	"fmt"
)

// ErrConfiguration agrupa todos os erros de configuração de regras.
// Não há erro recuperável no caminho de decisão; só a configuração falha.
var ErrConfiguration = errors.New("ratelimit: invalid configuration")

var (
	ErrInvalidLimit    = fmt.Errorf("%w: requests limit must be positive", ErrConfiguration)
	ErrInvalidWindow   = fmt.Errorf("%w: window size must be positive", ErrConfiguration)
	ErrInvalidEndpoint = fmt.Errorf("%w: endpoint must be a non-empty string", ErrConfiguration)
)

// ErrNoSlot indica que nenhuma vaga de concorrência ficou livre a tempo.
var ErrNoSlot = errors.New("concurrency: no slot available")
