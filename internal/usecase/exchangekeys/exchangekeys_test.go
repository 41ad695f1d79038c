package exchangekeys

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
	"github.com/traderhub/account-service/pkg/types/errs"
)

type fakeKeysRepo struct {
	stored      map[string]map[string][2]string // userID -> exchangeID -> (token, secret)
	lastDecrypt bool
}

func newFakeKeysRepo() *fakeKeysRepo {
	return &fakeKeysRepo{stored: map[string]map[string][2]string{}}
}

func (f *fakeKeysRepo) Add(_ context.Context, userID, exchangeID, token, secret string) error {
	if f.stored[userID] == nil {
		f.stored[userID] = map[string][2]string{}
	}
	if _, ok := f.stored[userID][exchangeID]; ok {
		return errs.ErrConflict
	}
	f.stored[userID][exchangeID] = [2]string{token, secret}

	return nil
}

func (f *fakeKeysRepo) Get(_ context.Context, userID string, exchangeIDs []string, decrypt bool) ([]entity.ExchangeKey, error) {
	f.lastDecrypt = decrypt

	wanted := func(id string) bool {
		if len(exchangeIDs) == 0 {
			return true
		}
		for _, want := range exchangeIDs {
			if want == id {
				return true
			}
		}

		return false
	}

	var keys []entity.ExchangeKey
	for exchangeID, pair := range f.stored[userID] {
		if !wanted(exchangeID) {
			continue
		}

		key := entity.ExchangeKey{
			ExchangeID:  exchangeID,
			TokenLast4:  last4(pair[0]),
			SecretLast4: last4(pair[1]),
		}
		if decrypt {
			key.Token = pair[0]
			key.Secret = pair[1]
		}
		keys = append(keys, key)
	}

	return keys, nil
}

func (f *fakeKeysRepo) Delete(_ context.Context, userID, exchangeID string) error {
	delete(f.stored[userID], exchangeID)

	return nil
}

func last4(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

type fakeEmitter struct {
	events []string
	err    error
}

func (f *fakeEmitter) Emit(_ context.Context, eventType string, _ any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, eventType)

	return nil
}

func (f *fakeEmitter) Close() error { return nil }

type nopLogger struct{}

func (nopLogger) Debug(message interface{}, args ...interface{}) {}
func (nopLogger) Info(message string, args ...interface{})       {}
func (nopLogger) Warn(message string, args ...interface{})       {}
func (nopLogger) Error(message interface{}, args ...interface{}) {}
func (nopLogger) Fatal(message interface{}, args ...interface{}) {}

func owner(userID string) entity.AuthPrincipal {
	return entity.AuthPrincipal{ID: userID}
}

func system() entity.AuthPrincipal {
	return entity.AuthPrincipal{ID: "svc", Roles: []string{entity.RoleSystem}}
}

func validInput(userID string) dto.AddExchangeKeysInput {
	return dto.AddExchangeKeysInput{
		UserID:     userID,
		ExchangeID: "binance",
		Token:      "token-abcd1234",
		Secret:     "secret-wxyz5678",
	}
}

func TestAdd_OwnerStoresKeys(t *testing.T) {
	repo := newFakeKeysRepo()
	emitter := &fakeEmitter{}
	uc := New(repo, emitter, nopLogger{})

	err := uc.Add(context.Background(), owner("u1"), validInput("u1"))
	require.NoError(t, err)

	assert.Contains(t, repo.stored["u1"], "binance")
	assert.Equal(t, []string{"addedExchangeKeys"}, emitter.events)
}

func TestAdd_MissingFieldsRejected(t *testing.T) {
	uc := New(newFakeKeysRepo(), &fakeEmitter{}, nopLogger{})

	input := validInput("u1")
	input.Secret = ""

	err := uc.Add(context.Background(), owner("u1"), input)
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestAdd_NonOwnerDenied(t *testing.T) {
	repo := newFakeKeysRepo()
	uc := New(repo, &fakeEmitter{}, nopLogger{})

	err := uc.Add(context.Background(), owner("u2"), validInput("u1"))
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
	assert.Empty(t, repo.stored["u1"])
}

func TestAdd_SystemRoleCannotWriteForOthers(t *testing.T) {
	uc := New(newFakeKeysRepo(), &fakeEmitter{}, nopLogger{})

	err := uc.Add(context.Background(), system(), validInput("u1"))
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
}

func TestAdd_DuplicateExchangeConflicts(t *testing.T) {
	uc := New(newFakeKeysRepo(), &fakeEmitter{}, nopLogger{})
	ctx := context.Background()

	require.NoError(t, uc.Add(ctx, owner("u1"), validInput("u1")))

	err := uc.Add(ctx, owner("u1"), validInput("u1"))
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestAdd_EmitterFailureTolerated(t *testing.T) {
	repo := newFakeKeysRepo()
	emitter := &fakeEmitter{err: errors.New("broker down")}
	uc := New(repo, emitter, nopLogger{})

	err := uc.Add(context.Background(), owner("u1"), validInput("u1"))
	require.NoError(t, err)

	assert.Contains(t, repo.stored["u1"], "binance")
}

func TestGet_OwnerGetsMaskedKeys(t *testing.T) {
	repo := newFakeKeysRepo()
	uc := New(repo, &fakeEmitter{}, nopLogger{})
	ctx := context.Background()

	require.NoError(t, uc.Add(ctx, owner("u1"), validInput("u1")))

	keys, err := uc.Get(ctx, owner("u1"), "u1", nil)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	assert.False(t, repo.lastDecrypt)
	assert.Equal(t, "1234", keys[0].TokenLast4)
	assert.Equal(t, "5678", keys[0].SecretLast4)
	assert.Empty(t, keys[0].Token)
	assert.Empty(t, keys[0].Secret)
}

func TestGet_SystemGetsPlaintext(t *testing.T) {
	repo := newFakeKeysRepo()
	uc := New(repo, &fakeEmitter{}, nopLogger{})
	ctx := context.Background()

	require.NoError(t, uc.Add(ctx, owner("u1"), validInput("u1")))

	keys, err := uc.Get(ctx, system(), "u1", nil)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	assert.True(t, repo.lastDecrypt)
	assert.Equal(t, "token-abcd1234", keys[0].Token)
	assert.Equal(t, "secret-wxyz5678", keys[0].Secret)
}

func TestGet_StrangerDenied(t *testing.T) {
	uc := New(newFakeKeysRepo(), &fakeEmitter{}, nopLogger{})

	_, err := uc.Get(context.Background(), owner("u2"), "u1", nil)
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
}

func TestGet_FiltersByExchangeIDs(t *testing.T) {
	repo := newFakeKeysRepo()
	uc := New(repo, &fakeEmitter{}, nopLogger{})
	ctx := context.Background()

	require.NoError(t, uc.Add(ctx, owner("u1"), validInput("u1")))

	second := validInput("u1")
	second.ExchangeID = "kraken"
	require.NoError(t, uc.Add(ctx, owner("u1"), second))

	keys, err := uc.Get(ctx, owner("u1"), "u1", []string{"kraken"})
	require.NoError(t, err)
	require.Len(t, keys, 1)

	assert.Equal(t, "kraken", keys[0].ExchangeID)
}

func TestDelete_OwnerRemovesKeys(t *testing.T) {
	repo := newFakeKeysRepo()
	emitter := &fakeEmitter{}
	uc := New(repo, emitter, nopLogger{})
	ctx := context.Background()

	require.NoError(t, uc.Add(ctx, owner("u1"), validInput("u1")))
	require.NoError(t, uc.Delete(ctx, owner("u1"), "u1", "binance"))

	assert.Empty(t, repo.stored["u1"])
	assert.Equal(t, []string{"addedExchangeKeys", "deletedExchangeKeys"}, emitter.events)
}

func TestDelete_NonOwnerDenied(t *testing.T) {
	repo := newFakeKeysRepo()
	uc := New(repo, &fakeEmitter{}, nopLogger{})
	ctx := context.Background()

	require.NoError(t, uc.Add(ctx, owner("u1"), validInput("u1")))

	err := uc.Delete(ctx, system(), "u1", "binance")
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
	assert.Contains(t, repo.stored["u1"], "binance")
}
