package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"resume-ats/internal/config"
	"resume-ats/internal/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedisAdapter(&config.RedisConfig{Address: mr.Addr(), MD5RecordExpireDays: 7})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestRedisClaimResolveRelease(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)
	md5Hex := "9e107d9d372bb6826bd81d3542a419d6"

	existing, claimed, err := r.Claim(ctx, md5Hex, "sub-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Empty(t, existing)

	existing, claimed, err = r.Claim(ctx, md5Hex, "sub-2")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "sub-1", existing)

	require.NoError(t, r.Resolve(ctx, md5Hex, "Jane_Doe_4567.json"))
	existing, claimed, err = r.Claim(ctx, md5Hex, "sub-3")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "Jane_Doe_4567.json", existing)

	mapKey := fmt.Sprintf(constants.KeyFileMD5ToRecord, md5Hex)
	assert.Equal(t, 7*24*time.Hour, mr.TTL(mapKey))

	require.NoError(t, r.Release(ctx, md5Hex))
	assert.False(t, mr.Exists(mapKey))

	_, claimed, err = r.Claim(ctx, md5Hex, "sub-4")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisDefaultExpire(t *testing.T) {
	r := &Redis{config: &config.RedisConfig{}}
	assert.Equal(t, 365*24*time.Hour, r.GetMD5ExpireDuration())
}

func TestNewRedisAdapterValidation(t *testing.T) {
	_, err := NewRedisAdapter(nil)
	assert.Error(t, err)
	_, err = NewRedisAdapter(&config.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisClaimAfterExpiry(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)
	first, second := "9e107d9d372bb6826bd81d3542a419d6", "e4d909c290d0fb1ca068ffaddf22cbd0"

	_, claimed, err := r.Claim(ctx, first, "sub-1")
	require.NoError(t, err)
	require.True(t, claimed)

	// claiming another file must not extend the first mapping
	mr.FastForward(4 * 24 * time.Hour)
	_, claimed, err = r.Claim(ctx, second, "sub-2")
	require.NoError(t, err)
	require.True(t, claimed)
	assert.Equal(t, 3*24*time.Hour, mr.TTL(fmt.Sprintf(constants.KeyFileMD5ToRecord, first)))

	mr.FastForward(3*24*time.Hour + time.Second)
	existing, claimed, err := r.Claim(ctx, first, "sub-3")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Empty(t, existing)

	existing, claimed, err = r.Claim(ctx, second, "sub-4")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "sub-2", existing)
}
