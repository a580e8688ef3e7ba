package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/ai-debate/internal/kv"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())

	rec := UserRecord{Email: "ana@example.com", DisplayName: "Ana", Tier: TierPro, AccessToken: "abc"}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec, *got)

	tok, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func TestSave_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())

	require.NoError(t, s.Save(ctx, UserRecord{Email: "a@x", Tier: TierFree, AccessToken: "t1"}))
	require.NoError(t, s.Save(ctx, UserRecord{Email: "a@x", Tier: TierEnterprise, AccessToken: "t2"}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, TierEnterprise, got.Tier)
	assert.Equal(t, "t2", got.AccessToken)
}

func TestSave_RejectsIncompleteRecords(t *testing.T) {
	s := New(kv.NewMemory())
	require.Error(t, s.Save(context.Background(), UserRecord{Email: "a@x", Tier: TierFree}))
	require.Error(t, s.Save(context.Background(), UserRecord{Email: "a@x", Tier: "gold", AccessToken: "t"}))
}

func TestLoad_AbsentOrMalformedIsNil(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := New(mem)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, payload := range []string{"{not json", `{"email":"a@x","tier":"free"}`, `{"access_token":"t","tier":"platinum"}`} {
		require.NoError(t, mem.Set(ctx, userKey, []byte(payload)))
		got, err = s.Load(ctx)
		require.NoError(t, err, payload)
		assert.Nil(t, got, payload)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())
	require.NoError(t, s.Save(ctx, UserRecord{Email: "a@x", Tier: TierFree, AccessToken: "t"}))
	require.NoError(t, s.Clear(ctx))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Clear(ctx), "clearing twice is fine")
}

type failingKV struct{ kv.Memory }

func (*failingKV) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk gone") }

func TestLoad_BackingStoreErrorIsReturned(t *testing.T) {
	s := New(&failingKV{})
	_, err := s.Load(context.Background())
	require.Error(t, err)
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierPro, ParseTier(" PRO "))
	assert.Equal(t, TierEnterprise, ParseTier("enterprise"))
	assert.Equal(t, TierFree, ParseTier("free"))
	assert.Equal(t, TierFree, ParseTier("diamond"))
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sign := func(exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
		s, err := tok.SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	assert.True(t, TokenExpired(sign(now.Add(-time.Minute)), now))
	assert.False(t, TokenExpired(sign(now.Add(time.Hour)), now))
	assert.False(t, TokenExpired("abc", now), "opaque tokens never expire locally")

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("k"))
	require.NoError(t, err)
	assert.False(t, TokenExpired(noExp, now))
}
