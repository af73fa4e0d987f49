package domain

// Camada de domínio do rate limit por janela deslizante.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"fmt"
	"time"
)

// Key identifica um log de requisições: um cliente em um endpoint.
//
// Client e Endpoint são opacos para o domínio; quem chama decide como derivá-los
// (IP, header confiável, rota...).
type Key struct {
	Client   string
	Endpoint string
}

func (k Key) String() string { return k.Client + " " + k.Endpoint }

// Rule é o par (limite de requisições, tamanho da janela) que governa um endpoint.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Validate devolve um erro de configuração se limite ou janela não forem positivos.
func (r Rule) Validate() error {
	if r.Limit <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidLimit, r.Limit)
	}
	if r.Window <= 0 {
		return fmt.Errorf("%w (got %s)", ErrInvalidWindow, r.Window)
	}
	return nil
}

func (r Rule) String() string {
	return fmt.Sprintf("%d req/%s", r.Limit, r.Window)
}

// Limiter decide se uma requisição de Key pode seguir agora.
//
// Implementações devem ser seguras para uso concorrente e tratar
// "ler-podar-contar-anexar" de uma mesma Key como uma única operação atômica.
type Limiter interface {
	Check(Key) Decision
}

type Decision struct {
	Allowed bool

	// Rule é a regra efetiva usada na decisão (do endpoint ou a padrão).
	Rule Rule

	// Count é o número de requisições admitidas dentro da janela após a decisão.
	Count     int
	Remaining int

	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration

	// ResetAt é quando a entrada mais antiga da janela expira.
	ResetAt time.Time

	// Untracked indica uma negação por capacidade (limite de chaves rastreadas),
	// não por excesso de requisições do cliente.
	Untracked bool
}
