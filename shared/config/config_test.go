package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, public, private string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "public.yaml"), []byte(public), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "private.yaml"), []byte(private), 0o600))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := writeConfig(t, "storage: memory\n", "jwt_key: 'k'\n")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Public.Storage)
	assert.Equal(t, ":8080", cfg.Public.Http.Addr)
	assert.Equal(t, "info", cfg.Public.Log.Level)
	assert.Equal(t, 24*time.Hour, cfg.JwtTTL())
	assert.Equal(t, "k", cfg.JwtKey())
	assert.Equal(t, "read:all();post:all();admin:perm(Admin)", cfg.Public.Locks.Board)
	assert.Equal(t, "see:all();create:perm(Admin);delete:perm(Admin);admin:perm(Admin)", cfg.Public.Locks.Category)
	assert.Equal(t, "Developer", cfg.Public.Locks.SuperPermission)
	assert.Equal(t, 0.2, cfg.Public.Limits.PostsPerSecond)
	assert.Equal(t, 5, cfg.Public.Limits.PostBurst)
}

func TestLoadFull(t *testing.T) {
	public := `
storage: pg
http:
  addr: ":9000"
  read_timeout: 5s
log:
  level: debug
  json: true
jwt_ttl: 1h
locks:
  board: "read:all();post:perm(Member);admin:perm(Admin)"
  super_permission: Wizard
cors_origins: ["http://localhost:3000"]
`
	private := `
jwt_key: secret
pg:
  host: localhost
  port: 5432
  user: bbs
  password: pw
  dbname: bbs
`
	cfg, err := Load(writeConfig(t, public, private))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Public.Http.Addr)
	assert.Equal(t, 5*time.Second, cfg.Public.Http.ReadTimeout)
	assert.True(t, cfg.Public.Log.Json)
	assert.Equal(t, time.Hour, cfg.Public.JwtTTL)
	assert.Equal(t, "Wizard", cfg.Public.Locks.SuperPermission)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Public.CorsOrigins)
	assert.Equal(t, "host=localhost port=5432 user=bbs password=pw dbname=bbs sslmode=disable", cfg.Private.Pg.DSN())
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name    string
		public  string
		private string
	}{
		{name: "pg without host", public: "storage: pg\n", private: "jwt_key: k\n"},
		{name: "unknown storage", public: "storage: redis\n", private: "jwt_key: k\n"},
		{name: "missing jwt key", public: "storage: memory\n", private: ""},
		{name: "unknown field", public: "storage: memory\nthreads_per_page: 20\n", private: "jwt_key: k\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.public, tc.private))
			assert.Error(t, err)
		})
	}
}

func TestMustLoadPanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() { MustLoad(t.TempDir()) })
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "backend", "config"))
	require.NoError(t, err)
	assert.Equal(t, StoragePg, cfg.Public.Storage)
	assert.Equal(t, 10*time.Second, cfg.Public.Http.ReadTimeout)
	assert.Equal(t, []string{"http://localhost:8081"}, cfg.Public.CorsOrigins)
	assert.Equal(t, "localhost", cfg.Private.Pg.Host)
}
