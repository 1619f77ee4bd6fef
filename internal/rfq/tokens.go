package rfq

import (
	"context"
	"strings"

	"metaltrade/internal/metrics"
	"metaltrade/models"

	"github.com/google/uuid"
)

// IssueToken выдаёт токен паре (заявка, поставщик). Повторный вызов возвращает уже
// выданный токен, в том числе использованный: новый токен этой паре не выпускается.
func (e *Engine) IssueToken(ctx context.Context, requestID uuid.UUID, supplierID int64) (*models.OfferToken, bool, error) {
	tok := &models.OfferToken{
		Token:      uuid.New(),
		RequestID:  requestID,
		SupplierID: supplierID,
	}
	created, err := e.store.IssueToken(ctx, tok)
	if err != nil {
		return nil, false, err
	}
	if created {
		metrics.TokensIssued.WithLabelValues("created").Inc()
	} else {
		metrics.TokensIssued.WithLabelValues("reused").Inc()
	}
	return tok, created, nil
}

// ValidateToken проверяет токен без изменения состояния и возвращает поставщика
func (e *Engine) ValidateToken(ctx context.Context, token string, requestID uuid.UUID) (int64, error) {
	tok, err := e.lookupToken(ctx, token)
	if err != nil {
		return 0, err
	}
	if tok.RequestID != requestID {
		return 0, ErrTokenMismatch
	}
	if tok.IsUsed {
		return 0, ErrTokenUsed
	}
	return tok.SupplierID, nil
}

// lookupToken: строка, не являющаяся UUID, неотличима от несуществующего токена
func (e *Engine) lookupToken(ctx context.Context, token string) (*models.OfferToken, error) {
	value, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, ErrTokenNotFound
	}
	return e.store.GetToken(ctx, value)
}
