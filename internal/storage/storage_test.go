package storage

import (
	"context"
	"testing"

	"resume-ats/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageFSOnly(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Backend = config.StoreBackendFS
	cfg.Store.Dir = t.TempDir()

	s, err := NewStorage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.MinIO)
	assert.Nil(t, s.MySQL)
	assert.Nil(t, s.Redis)
	assert.Nil(t, s.RabbitMQ)
	assert.False(t, s.AsyncEnabled())

	store, err := NewRecordStore(cfg, s)
	require.NoError(t, err)
	assert.IsType(t, &FSRecordStore{}, store)
}

func TestNewStorageWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Store.Backend = config.StoreBackendFS
	cfg.Redis.Address = mr.Addr()

	s, err := NewStorage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	require.NotNil(t, s.Redis)
	assert.NoError(t, s.Redis.Ping(context.Background()))
}

func TestNewStorageUnreachableRedisIsOptional(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Backend = config.StoreBackendFS
	cfg.Redis.Address = "127.0.0.1:1"
	cfg.Redis.DialTimeoutSeconds = 1

	s, err := NewStorage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, s.Redis)
}

func TestNewRecordStoreBackends(t *testing.T) {
	cfg := &config.Config{}

	cfg.Store.Backend = config.StoreBackendMinIO
	_, err := NewRecordStore(cfg, &Storage{})
	assert.Error(t, err)

	cfg.Store.Backend = config.StoreBackendMySQL
	_, err = NewRecordStore(cfg, nil)
	assert.Error(t, err)

	cfg.Store.Backend = "tape"
	_, err = NewRecordStore(cfg, nil)
	assert.Error(t, err)
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(&config.MySQLConfig{
		Host: "db", Port: 3306, Username: "ats", Password: "pw", Database: "resume_ats",
		ConnectTimeoutSeconds: 10, ReadTimeoutSeconds: 30, WriteTimeoutSeconds: 30,
	})
	assert.Equal(t, "ats:pw@tcp(db:3306)/resume_ats?charset=utf8mb4&parseTime=True&loc=Local&timeout=10s&readTimeout=30s&writeTimeout=30s", dsn)
}

func TestDocumentUploadMessageValid(t *testing.T) {
	assert.False(t, DocumentUploadMessage{}.Valid())
	assert.True(t, DocumentUploadMessage{
		SubmissionUUID:      "0190",
		OriginalFilename:    "jane.pdf",
		OriginalFilePathOSS: "resume/0190/original.pdf",
	}.Valid())
}
