package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_applyPlatformDefaults(t *testing.T) {
	for _, tt := range []struct {
		name     string
		cfg      Config
		env      map[string]string
		wantURL  string
		wantAddr string
	}{
		{
			name:     "ExplicitWins",
			cfg:      Config{Addr: defaultAddr, DatabaseURL: "postgres://a/b"},
			env:      map[string]string{"DATABASE_URL": "postgres://c/d", "DB_HOST": "h", "DB_NAME": "n"},
			wantURL:  "postgres://a/b",
			wantAddr: defaultAddr,
		},
		{
			name:     "DatabaseURL",
			cfg:      Config{Addr: defaultAddr},
			env:      map[string]string{"DATABASE_URL": "postgres://c/d", "PORT": "3000"},
			wantURL:  "postgres://c/d",
			wantAddr: "0.0.0.0:3000",
		},
		{
			name: "Parts",
			cfg:  Config{Addr: "127.0.0.1:9000"},
			env: map[string]string{
				"DB_HOST":     "db",
				"DB_PORT":     "5433",
				"DB_NAME":     "shop",
				"DB_USER":     "admin",
				"DB_PASSWORD": "p@ss",
				"PORT":        "3000",
			},
			wantURL:  "postgres://admin:p%40ss@db:5433/shop",
			wantAddr: "127.0.0.1:9000",
		},
		{
			name:     "PartsWithoutPassword",
			cfg:      Config{Addr: defaultAddr},
			env:      map[string]string{"DB_HOST": "localhost", "DB_NAME": "shop", "DB_USER": "admin"},
			wantURL:  "postgres://admin@localhost/shop",
			wantAddr: defaultAddr,
		},
		{
			name:     "Incomplete",
			cfg:      Config{Addr: defaultAddr},
			env:      map[string]string{"DB_HOST": "localhost"},
			wantAddr: defaultAddr,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.applyPlatformDefaults(func(k string) string { return tt.env[k] })
			assert.Equal(t, tt.wantURL, cfg.DatabaseURL)
			assert.Equal(t, tt.wantAddr, cfg.Addr)
		})
	}
}
