// Package ratelimit fornece adapters HTTP (net/http) para rate limit por janela
// deslizante e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (log de janela deslizante, regras, semáforo, estatísticas)
//   - ratelimit (este pacote): middlewares HTTP + extração de cliente/endpoint + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai o cliente (header/XFF/IP) e o endpoint (path, rota fixa ou grupo)
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 com Retry-After e corpo JSON {"error": ...}
//  4. Se permitido, chama o próximo handler (ex: reverse proxy)
//
// O binário cmd/gateway lê a configuração com viper (arquivo, .env e variáveis como
// RATE_DEFAULT_LIMIT, RATE_DEFAULT_WINDOW e RATE_ENDPOINT_RULES).
package ratelimit
