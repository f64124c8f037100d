package database

import (
	"net/url"
	"testing"

	"github.com/klokku/slotfinder/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionUrl(t *testing.T) {
	cfg := config.Database{
		Host:   "db.internal",
		Port:   5433,
		User:   "slot finder",
		Pass:   "p@ss:word",
		Name:   "slotfinder",
		Schema: "scheduling",
	}

	raw := connectionUrl("postgres", cfg)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "slot finder", u.User.Username())
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss:word", password)
	assert.Equal(t, "/slotfinder", u.Path)
	assert.Equal(t, "scheduling", u.Query().Get("search_path"))
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

func TestConnectionUrl_NoSchema(t *testing.T) {
	raw := connectionUrl("postgres", config.Database{Host: "localhost", Port: 5432, Name: "slotfinder"})
	assert.NotContains(t, raw, "search_path")
}

func TestFindMigrationsPath(t *testing.T) {
	path, err := findMigrationsPath()
	require.NoError(t, err)
	assert.DirExists(t, path)
}
