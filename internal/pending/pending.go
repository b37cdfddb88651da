// Package pending guarda os produtos resolvidos a partir de um link enquanto o
// usuário não confirma o monitoramento.
package pending

import (
	"context"
	"errors"

	"rastreador-precos/internal/models"
)

var (
	// ErrNotFound indica token desconhecido, expirado ou já usado
	ErrNotFound = errors.New("solicitação expirada")
	// ErrNotOwner indica que o token pertence a outro usuário
	ErrNotOwner = errors.New("solicitação de outro usuário")
)

// Store guarda candidatos por token. Take é de uso único.
type Store interface {
	Put(ctx context.Context, c models.Candidate) (string, error)
	Take(ctx context.Context, token, ownerID string) (models.Candidate, error)
}
