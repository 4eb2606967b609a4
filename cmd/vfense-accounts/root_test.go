package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/vfense-accounts/internal/config"
	"github.com/tendant/vfense-accounts/internal/store"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "bootstrap"}, names)
}

func TestRootCmd_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestRootCmd_EnvFileMustExist(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate", "--env-file", t.TempDir() + "/missing.env"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.env")
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "json default", level: "info", format: "json"},
		{name: "text debug", level: "debug", format: "text"},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
		{name: "bad level", level: "loud", format: "json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(&config.Config{LogLevel: tt.level, LogFormat: tt.format})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestStoreConfig(t *testing.T) {
	a := &app{cfg: &config.Config{
		StoreDriver:   "mongodb",
		MongoURI:      "mongodb://db:27017",
		MongoDatabase: "vfense",
		DBName:        "ignored",
	}}

	cfg, err := a.storeConfig(true)
	require.NoError(t, err)
	assert.Equal(t, store.DriverMongo, cfg.Driver)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.True(t, cfg.Migrate)

	a.cfg.StoreDriver = "sqlite"
	_, err = a.storeConfig(false)
	assert.Error(t, err)
}
