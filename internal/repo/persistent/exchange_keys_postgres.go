package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/traderhub/account-service/internal/entity"
	"github.com/traderhub/account-service/internal/repo"
	"github.com/traderhub/account-service/pkg/logger"
	"github.com/traderhub/account-service/pkg/postgres"
	"github.com/traderhub/account-service/pkg/types/errs"
)

const (
	// Table
	exchangeKeysTable = "exchange_keys"

	// Columns
	exchangeUserIDColumn     = "user_id"
	exchangeIDColumn         = "exchange_id"
	tokenCiphertextColumn    = "token_ciphertext"
	tokenLast4Column         = "token_last4"
	secretCiphertextColumn   = "secret_ciphertext"
	secretLast4Column        = "secret_last4"
	uniqueViolationErrorCode = "23505"
)

// ExchangeKeysRepo stores exchange API credentials encrypted at rest. The
// last four plaintext characters are kept alongside for display without
// decryption.
type ExchangeKeysRepo struct {
	*postgres.Postgres
	encrypter repo.Encrypter
	logger    logger.Interface
}

func NewExchangeKeysRepo(pg *postgres.Postgres, enc repo.Encrypter, l logger.Interface) *ExchangeKeysRepo {
	return &ExchangeKeysRepo{pg, enc, l}
}

func (r *ExchangeKeysRepo) Add(ctx context.Context, userID, exchangeID, token, secret string) error {
	tokenCiphertext, err := r.encrypter.Encrypt(ctx, token)
	if err != nil {
		return fmt.Errorf("ExchangeKeysRepo - Add - r.encrypter.Encrypt(token): %w", err)
	}

	secretCiphertext, err := r.encrypter.Encrypt(ctx, secret)
	if err != nil {
		return fmt.Errorf("ExchangeKeysRepo - Add - r.encrypter.Encrypt(secret): %w", err)
	}

	sql, args, err := r.Builder.
		Insert(exchangeKeysTable).
		Columns(
			exchangeUserIDColumn,
			exchangeIDColumn,
			tokenCiphertextColumn,
			tokenLast4Column,
			secretCiphertextColumn,
			secretLast4Column,
		).
		Values(
			userID,
			exchangeID,
			tokenCiphertext,
			last4(token),
			secretCiphertext,
			last4(secret),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("ExchangeKeysRepo - Add - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErrorCode {
			return fmt.Errorf("ExchangeKeysRepo - Add: %w", errs.ErrConflict)
		}
		return fmt.Errorf("ExchangeKeysRepo - Add - executor.Exec: %w", err)
	}

	return nil
}

// Get returns all records for the user, or only those named by exchangeIDs.
// When decrypt is set, plaintext token/secret are attached per record; a
// record whose decryption fails keeps only its last4 fields.
func (r *ExchangeKeysRepo) Get(ctx context.Context, userID string, exchangeIDs []string, decrypt bool) ([]entity.ExchangeKey, error) {
	where := squirrel.And{squirrel.Eq{exchangeUserIDColumn: userID}}
	if len(exchangeIDs) > 0 {
		where = append(where, squirrel.Eq{exchangeIDColumn: exchangeIDs})
	}

	sql, args, err := r.Builder.
		Select(
			exchangeIDColumn,
			tokenCiphertextColumn,
			tokenLast4Column,
			secretCiphertextColumn,
			secretLast4Column,
		).
		From(exchangeKeysTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ExchangeKeysRepo - Get - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ExchangeKeysRepo - Get - executor.Query: %w", err)
	}
	defer rows.Close()

	var keys []entity.ExchangeKey
	var ciphertexts [][2][]byte

	for rows.Next() {
		var key entity.ExchangeKey
		var tokenCiphertext, secretCiphertext []byte

		err = rows.Scan(
			&key.ExchangeID,
			&tokenCiphertext,
			&key.TokenLast4,
			&secretCiphertext,
			&key.SecretLast4,
		)
		if err != nil {
			return nil, fmt.Errorf("ExchangeKeysRepo - Get - rows.Scan: %w", err)
		}

		keys = append(keys, key)
		ciphertexts = append(ciphertexts, [2][]byte{tokenCiphertext, secretCiphertext})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ExchangeKeysRepo - Get - rows.Err: %w", err)
	}

	if !decrypt {
		return keys, nil
	}

	return r.attachPlaintext(ctx, keys, ciphertexts), nil
}

// attachPlaintext decrypts each record's token and secret in place. A field
// whose decryption fails is logged and left empty; its last4 stays visible.
func (r *ExchangeKeysRepo) attachPlaintext(ctx context.Context, keys []entity.ExchangeKey, ciphertexts [][2][]byte) []entity.ExchangeKey {
	for i := range keys {
		token, err := r.encrypter.Decrypt(ctx, ciphertexts[i][0])
		if err != nil {
			r.logger.Error(err, "ExchangeKeysRepo - attachPlaintext - r.encrypter.Decrypt(token)")
		} else {
			keys[i].Token = token
		}

		secret, err := r.encrypter.Decrypt(ctx, ciphertexts[i][1])
		if err != nil {
			r.logger.Error(err, "ExchangeKeysRepo - attachPlaintext - r.encrypter.Decrypt(secret)")
		} else {
			keys[i].Secret = secret
		}
	}

	return keys
}

func (r *ExchangeKeysRepo) Delete(ctx context.Context, userID, exchangeID string) error {
	sql, args, err := r.Builder.
		Delete(exchangeKeysTable).
		Where(squirrel.And{
			squirrel.Eq{exchangeUserIDColumn: userID},
			squirrel.Eq{exchangeIDColumn: exchangeID},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ExchangeKeysRepo - Delete - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ExchangeKeysRepo - Delete - executor.Exec: %w", err)
	}

	return nil
}

func last4(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}
