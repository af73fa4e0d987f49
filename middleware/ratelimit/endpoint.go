package ratelimit

import "net/http"

// EndpointFunc deriva o identificador do endpoint (o mesmo usado nas regras).
type EndpointFunc func(r *http.Request) string

// PathEndpoint usa o path da URL.
func PathEndpoint(r *http.Request) string {
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// StaticEndpoint fixa o endpoint; útil quando o middleware é montado por rota.
func StaticEndpoint(endpoint string) EndpointFunc {
	return func(*http.Request) string { return endpoint }
}

type ruleSet interface {
	Has(endpoint string) bool
}

// RuleEndpoint usa o path quando há regra para ele e agrupa o resto em fallback,
// mantendo limitado o número de chaves criadas por paths arbitrários.
func RuleEndpoint(rules ruleSet, fallback string) EndpointFunc {
	return func(r *http.Request) string {
		p := PathEndpoint(r)
		if rules.Has(p) {
			return p
		}
		return fallback
	}
}
