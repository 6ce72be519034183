// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidlingo/internal/config"
)

func stubLookPath(t *testing.T, missing ...string) {
	t.Helper()
	orig := LookPath
	LookPath = func(file string) (string, error) {
		for _, m := range missing {
			if file == m {
				return "", errors.New("executable file not found in $PATH")
			}
		}
		return "/usr/bin/" + file, nil
	}
	t.Cleanup(func() { LookPath = orig })
}

func validConfig(t *testing.T) config.AppConfig {
	cfg := config.Defaults()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Server.ListenAddr = "127.0.0.1:8088"
	cfg.Services.STTURL = "http://stt:9000"
	return cfg
}

func TestPerformStartupChecks_OK(t *testing.T) {
	stubLookPath(t)
	cfg := validConfig(t)
	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
	assert.DirExists(t, cfg.DataDir)
}

func TestPerformStartupChecks_ReportsAllProblems(t *testing.T) {
	stubLookPath(t, "ffprobe")
	cfg := validConfig(t)
	cfg.FFmpeg.FFprobeBin = "ffprobe"
	cfg.Server.ListenAddr = "nohostport"
	cfg.Services.SegmenterURL = "ftp://segmenter"
	cfg.Search.URL = "http://"

	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "invalid listen address")
	assert.Contains(t, msg, `media binary "ffprobe" not found`)
	assert.Contains(t, msg, "services.segmenterURL: scheme must be http or https")
	assert.Contains(t, msg, "search.url: host is missing")
}

func TestPerformStartupChecks_RequiresSTT(t *testing.T) {
	stubLookPath(t)
	cfg := validConfig(t)
	cfg.Services.STTURL = ""
	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "services.sttURL is required")
}

func TestPerformStartupChecks_RejectsForeignDatabase(t *testing.T) {
	stubLookPath(t)
	cfg := validConfig(t)
	cfg.Database.Path = filepath.Join(t.TempDir(), "db.sqlite")
	require.NoError(t, os.WriteFile(cfg.Database.Path, []byte("not a sqlite database, only some plain text"), 0o600))

	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}

func TestCheckListenAddr(t *testing.T) {
	assert.NoError(t, checkListenAddr(":8088"))
	assert.NoError(t, checkListenAddr("127.0.0.1:0"))
	assert.Error(t, checkListenAddr("127.0.0.1:99999"))
	assert.Error(t, checkListenAddr("127.0.0.1:http"))
}
