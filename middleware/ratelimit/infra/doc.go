// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - SlidingLog: log de timestamps por (cliente, endpoint) com janela deslizante
//   - RuleTable: regra padrão + regras por endpoint
//   - SlotPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore, RedisStatsStore, PrometheusStatsStore: destinos de estatísticas
package infra
