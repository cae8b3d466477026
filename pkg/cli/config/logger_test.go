package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagrelease/pkg/cli/config"
)

func TestLogger_Configure(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantErr bool
	}{
		{name: "Valid level: debug", level: "debug"},
		{name: "Valid level: DEBUG (case insensitive)", level: "DEBUG"},
		{name: "Valid level: info", level: "info"},
		{name: "Valid level: warn", level: "warn"},
		{name: "Valid level: ERROR", level: "ERROR"},
		{name: "Invalid level: invalid", level: "invalid", wantErr: true},
		{name: "Invalid level: empty string", level: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &config.Logger{Level: tt.level, Format: "text"}

			result, err := logger.Configure()
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.True(t, result != nil)
		})
	}
}

func TestLogger_Configure_Format(t *testing.T) {
	for _, format := range []string{"console", "text", "json", "JSON", ""} {
		t.Run("Format: "+format, func(t *testing.T) {
			logger := &config.Logger{Level: "info", Format: format}

			result, err := logger.Configure()
			gt.NoError(t, err)
			result.Info("test log message")
		})
	}

	_, err := (&config.Logger{Level: "info", Format: "xml"}).Configure()
	gt.Error(t, err)
}

func TestLogger_Configure_MasksSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := (&config.Logger{Level: "info", Format: "json", Output: path}).Configure()
	gt.NoError(t, err)

	logger.Info("configured", "github", config.GitHub{Token: "ghp_supersecret", Repository: "acme/fastlib"})

	raw, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.String(t, string(raw)).Contains("acme/fastlib")
	gt.False(t, strings.Contains(string(raw), "ghp_supersecret"))
}

func TestLogger_Flags(t *testing.T) {
	logger := &config.Logger{}
	flags := logger.Flags()
	gt.A(t, flags).Length(3)

	flagNames := make(map[string]bool)
	for _, flag := range flags {
		flagNames[flag.Names()[0]] = true
	}
	gt.True(t, flagNames["log-level"])
	gt.True(t, flagNames["log-format"])
	gt.True(t, flagNames["log-output"])
}
