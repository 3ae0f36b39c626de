package extensionhost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spirefy/go-extension-host/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
id: greeter
name: Greeter
publisher: spirefy
version: 1.2.3
description: says hello
engine: ">= 1.0.0, < 2.0.0"
main: greeter.wasm
activationEvents:
  - onCommand:greeter.hello
contributes:
  commands:
    - id: greeter.hello
      title: Hello
      category: Greeter
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(testManifest))
	require.NoError(t, err)

	assert.Equal(t, "greeter", m.Id)
	assert.Equal(t, "1.2.3", m.Version)
	assert.Equal(t, "greeter.wasm", m.Main)
	assert.Equal(t, []string{"onCommand:greeter.hello"}, m.ActivationEvents)
	assert.Equal(t, []types.Command{{Id: "greeter.hello", Title: "Hello", Category: "Greeter"}}, m.Contributes.Commands)

	_, err = ParseManifest([]byte("id: [unterminated"))
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestReadManifestResolvesMain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o600))

	m, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "greeter.wasm"), m.Main)
}

func TestValidateManifest(t *testing.T) {
	valid := func() types.Manifest {
		m, err := ParseManifest([]byte(testManifest))
		require.NoError(t, err)
		return m
	}

	tests := []struct {
		name          string
		mutate        func(*types.Manifest)
		engineVersion string
		wantErr       error
	}{
		{name: "valid", mutate: func(*types.Manifest) {}, engineVersion: "1.0.0"},
		{name: "missing id", mutate: func(m *types.Manifest) { m.Id = "" }, engineVersion: "1.0.0", wantErr: ErrInvalidManifest},
		{name: "bad version", mutate: func(m *types.Manifest) { m.Version = "1.x" }, engineVersion: "1.0.0", wantErr: ErrInvalidManifest},
		{name: "empty version", mutate: func(m *types.Manifest) { m.Version = "" }, engineVersion: "1.0.0", wantErr: ErrInvalidManifest},
		{name: "bad constraint", mutate: func(m *types.Manifest) { m.Engine = "!!garbage" }, engineVersion: "1.0.0", wantErr: ErrInvalidManifest},
		{name: "engine too new", mutate: func(*types.Manifest) {}, engineVersion: "2.0.0", wantErr: ErrIncompatibleEngine},
		{name: "engine too old", mutate: func(*types.Manifest) {}, engineVersion: "0.9.0", wantErr: ErrIncompatibleEngine},
		{name: "no constraint", mutate: func(m *types.Manifest) { m.Engine = "" }, engineVersion: "0.0.1"},
		{
			name: "duplicate command",
			mutate: func(m *types.Manifest) {
				m.Contributes.Commands = append(m.Contributes.Commands, types.Command{Id: "greeter.hello"})
			},
			engineVersion: "1.0.0",
			wantErr:       ErrInvalidManifest,
		},
		{
			name: "command without id",
			mutate: func(m *types.Manifest) {
				m.Contributes.Commands = append(m.Contributes.Commands, types.Command{Title: "x"})
			},
			engineVersion: "1.0.0",
			wantErr:       ErrInvalidManifest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(&m)
			err := ValidateManifest(m, tt.engineVersion)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 1, compareVersions("1.10.0", "1.9.0"))
	assert.Equal(t, -1, compareVersions("1.0.0", "1.0.1"))
	assert.Equal(t, 0, compareVersions("2.0.0", "2.0.0"))
}

func TestEventMatches(t *testing.T) {
	ev := types.OnCommand("a.b")
	assert.True(t, ev.Matches("onCommand:a.b"))
	assert.True(t, ev.Matches("*"))
	assert.False(t, ev.Matches("onCommand:a.c"))
	assert.False(t, ev.Matches(types.EventStartupFinished))
}
