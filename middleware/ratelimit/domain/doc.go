// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Regras (Rule), chaves (Key) e decisões (Decision) são valores simples, para que
// a camada de aplicação e os testes não precisem conhecer a infraestrutura.
package domain
