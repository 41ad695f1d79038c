// Package exchangekeys implements the exchange-credential vault. Plaintext
// credentials never leave the process except to the system role.
package exchangekeys

import (
	"context"
	"fmt"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
	"github.com/traderhub/account-service/internal/infrastructure"
	"github.com/traderhub/account-service/internal/repo"
	"github.com/traderhub/account-service/pkg/logger"
	"github.com/traderhub/account-service/pkg/types/errs"
)

const (
	_eventKeysAdded   = "addedExchangeKeys"
	_eventKeysDeleted = "deletedExchangeKeys"
)

type UseCase struct {
	repo   repo.ExchangeKeysRepo
	events infrastructure.EventEmitter
	logger logger.Interface
}

func New(r repo.ExchangeKeysRepo, events infrastructure.EventEmitter, l logger.Interface) *UseCase {
	return &UseCase{
		repo:   r,
		events: events,
		logger: l,
	}
}

// Add stores one credential pair for the calling user. Only the owner may
// write; a second pair for the same exchange is a conflict.
func (uc *UseCase) Add(ctx context.Context, auth entity.AuthPrincipal, input dto.AddExchangeKeysInput) error {
	if input.UserID == "" || input.ExchangeID == "" || input.Token == "" || input.Secret == "" {
		return errs.Validationf(`"User ID", "Exchange ID", "Token" and "Secret" are required`)
	}

	if !auth.IsOwner(input.UserID) {
		return fmt.Errorf("ExchangeKeysUseCase - Add: %w", errs.ErrPermissionDenied)
	}

	err := uc.repo.Add(ctx, input.UserID, input.ExchangeID, input.Token, input.Secret)
	if err != nil {
		return fmt.Errorf("ExchangeKeysUseCase - Add - uc.repo.Add: %w", err)
	}

	uc.emit(ctx, _eventKeysAdded, input.UserID, input.ExchangeID)

	return nil
}

// Get returns the stored pairs. The owner sees masked entries only; the
// system role additionally gets the decrypted plaintext.
func (uc *UseCase) Get(ctx context.Context, auth entity.AuthPrincipal, userID string, exchangeIDs []string) ([]entity.ExchangeKey, error) {
	if userID == "" {
		return nil, errs.Validationf(`"User ID" is required`)
	}

	isSystem := auth.HasRole(entity.RoleSystem)
	if !auth.IsOwner(userID) && !isSystem {
		return nil, fmt.Errorf("ExchangeKeysUseCase - Get: %w", errs.ErrPermissionDenied)
	}

	keys, err := uc.repo.Get(ctx, userID, exchangeIDs, isSystem)
	if err != nil {
		return nil, fmt.Errorf("ExchangeKeysUseCase - Get - uc.repo.Get: %w", err)
	}

	return keys, nil
}

// Delete removes one credential pair. Owner only.
func (uc *UseCase) Delete(ctx context.Context, auth entity.AuthPrincipal, userID, exchangeID string) error {
	if userID == "" || exchangeID == "" {
		return errs.Validationf(`"User ID" and "Exchange ID" are required`)
	}

	if !auth.IsOwner(userID) {
		return fmt.Errorf("ExchangeKeysUseCase - Delete: %w", errs.ErrPermissionDenied)
	}

	err := uc.repo.Delete(ctx, userID, exchangeID)
	if err != nil {
		return fmt.Errorf("ExchangeKeysUseCase - Delete - uc.repo.Delete: %w", err)
	}

	uc.emit(ctx, _eventKeysDeleted, userID, exchangeID)

	return nil
}

// emit is fire-and-forget: delivery failures are logged, never surfaced.
func (uc *UseCase) emit(ctx context.Context, eventType, userID, exchangeID string) {
	payload := map[string]string{
		"userId":     userID,
		"exchangeId": exchangeID,
	}

	if err := uc.events.Emit(ctx, eventType, payload); err != nil {
		uc.logger.Error(err, "ExchangeKeysUseCase - emit - uc.events.Emit")
	}
}
