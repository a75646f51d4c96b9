package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modules.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadModules(t *testing.T) {
	path := writeModulesFile(t, `
[[module]]
route = "/"
module = "hello.wasm"

[[module]]
route = "/api/..."
module = "/opt/wagi/api.wasm"
entrypoint = "handle"
allowed_hosts = ["api.example.com"]
max_http_requests = 3

[module.volumes]
"/data" = "/srv/data"

[module.environment]
APP_MODE = "prod"
`)

	modules, err := LoadModules(path)
	require.NoError(t, err)
	require.Len(t, modules, 2)

	first := modules[0]
	assert.Equal(t, "/", first.Route)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "hello.wasm"), first.Path)
	assert.Equal(t, "hello", first.Name())
	assert.Empty(t, first.Entrypoint)
	assert.Zero(t, first.MaxHTTPRequests)

	second := modules[1]
	assert.Equal(t, "/api/...", second.Route)
	assert.Equal(t, "/opt/wagi/api.wasm", second.Path)
	assert.Equal(t, "api", second.Name())
	assert.Equal(t, "handle", second.Entrypoint)
	assert.Equal(t, []string{"api.example.com"}, second.AllowedHosts)
	assert.Equal(t, 3, second.MaxHTTPRequests)
	assert.Equal(t, map[string]string{"/data": "/srv/data"}, second.Volumes)
	assert.Equal(t, map[string]string{"APP_MODE": "prod"}, second.Environment)
}

func TestLoadModulesDefaultsCallLimit(t *testing.T) {
	path := writeModulesFile(t, `
[[module]]
route = "/"
module = "hello.wasm"
allowed_hosts = ["example.com"]
`)

	modules, err := LoadModules(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxHTTPRequests, modules[0].MaxHTTPRequests)
}

func TestLoadModulesValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty file",
			content: "",
			wantErr: "defines no modules",
		},
		{
			name: "route without slash",
			content: `
[[module]]
route = "api"
module = "api.wasm"
`,
			wantErr: "must begin with /",
		},
		{
			name: "missing module path",
			content: `
[[module]]
route = "/"
`,
			wantErr: "module path is required",
		},
		{
			name: "duplicate route",
			content: `
[[module]]
route = "/"
module = "a.wasm"

[[module]]
route = "/"
module = "b.wasm"
`,
			wantErr: "already used",
		},
		{
			name: "relative volume guest path",
			content: `
[[module]]
route = "/"
module = "a.wasm"

[module.volumes]
"data" = "/srv/data"
`,
			wantErr: "absolute guest path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadModules(writeModulesFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadModulesBadTOML(t *testing.T) {
	_, err := LoadModules(writeModulesFile(t, "[[module]\nroute ="))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse modules file")
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	wasm := filepath.Join(dir, "hello.wasm")
	require.NoError(t, os.WriteFile(wasm, []byte{0x00, 0x61, 0x73, 0x6d}, 0o644))
	data := filepath.Join(dir, "data")
	require.NoError(t, os.Mkdir(data, 0o755))

	ok := []Module{{Route: "/", Module: "hello.wasm", Path: wasm, Volumes: map[string]string{"/data": data}}}
	assert.NoError(t, CheckFiles(ok))

	missing := []Module{{Route: "/", Module: "gone.wasm", Path: filepath.Join(dir, "gone.wasm")}}
	assert.Error(t, CheckFiles(missing))

	badVolume := []Module{{Route: "/", Module: "hello.wasm", Path: wasm, Volumes: map[string]string{"/data": wasm}}}
	err := CheckFiles(badVolume)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}
