package persistent

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/pkg/postgres"
	"github.com/traderhub/account-service/pkg/types/errs"
)

const (
	// Table
	accountDataTable = "account_data"

	// Columns
	accountUserIDColumn = "user_id"
	metaKeyColumn       = "meta_key"
	metaValueColumn     = "meta_value"
)

// AccountDataRepo is a sparse (user_id, meta_key) -> meta_value store.
// Uniqueness of (user_id, meta_key) is enforced by the schema; writes are
// last-write-wins upserts.
type AccountDataRepo struct {
	*postgres.Postgres
}

func NewAccountDataRepo(pg *postgres.Postgres) *AccountDataRepo {
	return &AccountDataRepo{pg}
}

func (r *AccountDataRepo) Get(ctx context.Context, userID string, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	sql, args, err := r.Builder.
		Select(metaKeyColumn, metaValueColumn).
		From(accountDataTable).
		Where(squirrel.And{
			squirrel.Eq{accountUserIDColumn: userID},
			squirrel.Eq{metaKeyColumn: keys},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("AccountDataRepo - Get - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("AccountDataRepo - Get - executor.Query: %w", err)
	}
	defer rows.Close()

	data := make(map[string]string, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("AccountDataRepo - Get - rows.Scan: %w", err)
		}
		data[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AccountDataRepo - Get - rows.Err: %w", err)
	}

	return data, nil
}

// BulkGet fetches attributes for many users in one round trip. The result
// preserves the input order; users without rows get an empty data map.
func (r *AccountDataRepo) BulkGet(ctx context.Context, reqs []dto.UserMetaKeys) ([]dto.UserMetaData, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	var where squirrel.Or
	for _, req := range reqs {
		where = append(where, squirrel.And{
			squirrel.Eq{accountUserIDColumn: req.UserID},
			squirrel.Eq{metaKeyColumn: req.Keys},
		})
	}

	sql, args, err := r.Builder.
		Select(accountUserIDColumn, metaKeyColumn, metaValueColumn).
		From(accountDataTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("AccountDataRepo - BulkGet - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("AccountDataRepo - BulkGet - executor.Query: %w", err)
	}
	defer rows.Close()

	byUser := make(map[string]map[string]string)
	for rows.Next() {
		var userID, key, value string
		if err := rows.Scan(&userID, &key, &value); err != nil {
			return nil, fmt.Errorf("AccountDataRepo - BulkGet - rows.Scan: %w", err)
		}
		if byUser[userID] == nil {
			byUser[userID] = make(map[string]string)
		}
		byUser[userID][key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AccountDataRepo - BulkGet - rows.Err: %w", err)
	}

	result := make([]dto.UserMetaData, 0, len(reqs))
	for _, req := range reqs {
		data := byUser[req.UserID]
		if data == nil {
			data = map[string]string{}
		}
		result = append(result, dto.UserMetaData{UserID: req.UserID, Data: data})
	}

	return result, nil
}

// Update upserts all rows in a single statement, so concurrent readers never
// observe a partially applied call.
func (r *AccountDataRepo) Update(ctx context.Context, userID string, data map[string]string) error {
	if len(data) == 0 {
		return nil
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder := r.Builder.
		Insert(accountDataTable).
		Columns(accountUserIDColumn, metaKeyColumn, metaValueColumn)

	for _, key := range keys {
		builder = builder.Values(userID, key, data[key])
	}

	sql, args, err := builder.
		Suffix("ON CONFLICT (" + accountUserIDColumn + ", " + metaKeyColumn + ") DO UPDATE SET " +
			metaValueColumn + " = EXCLUDED." + metaValueColumn).
		ToSql()
	if err != nil {
		return fmt.Errorf("AccountDataRepo - Update - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("AccountDataRepo - Update - executor.Exec: %w", err)
	}

	return nil
}

// DeleteByPrefix removes every row whose meta key starts with rootKey. An
// empty rootKey would wipe the whole account, so it is rejected.
func (r *AccountDataRepo) DeleteByPrefix(ctx context.Context, userID, rootKey string) error {
	if rootKey == "" {
		return fmt.Errorf("AccountDataRepo - DeleteByPrefix - root key is required: %w", errs.ErrValidation)
	}

	sql, args, err := r.Builder.
		Delete(accountDataTable).
		Where(squirrel.And{
			squirrel.Eq{accountUserIDColumn: userID},
			squirrel.Like{metaKeyColumn: rootKey + "%"},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("AccountDataRepo - DeleteByPrefix - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("AccountDataRepo - DeleteByPrefix - executor.Exec: %w", err)
	}

	return nil
}
