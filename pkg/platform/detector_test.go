package platform_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storysize/storysize/pkg/platform"
)

func TestDetectEmptyInputFloorsToBackend(t *testing.T) {
	d := platform.NewDetector(nil)
	det := d.Detect(platform.Request{})

	require.Len(t, det.Requirements, 1)
	r := det.Requirements[0]
	assert.Equal(t, platform.Backend, r.Platform)
	assert.Equal(t, platform.ScopeLow, r.Scope)
	assert.Equal(t, []platform.Source{platform.SourceDefault}, r.Sources)
}

func TestDetectFromText(t *testing.T) {
	d := platform.NewDetector(nil)
	det := d.Detect(platform.Request{
		Text: "Add a responsive React dashboard page backed by a new REST API endpoint and a Postgres schema change.",
	})

	assert.Equal(t, []platform.Platform{platform.Frontend, platform.Backend}, det.Platforms())

	fe, ok := det.Lookup(platform.Frontend)
	require.True(t, ok)
	assert.Equal(t, platform.ScopeHigh, fe.Scope)
	assert.Equal(t, []string{"dashboard", "page", "react", "responsive"}, fe.Technologies)

	be, ok := det.Lookup(platform.Backend)
	require.True(t, ok)
	assert.Equal(t, platform.ScopeHigh, be.Scope)
	assert.Contains(t, be.Sources, platform.SourceText)
}

func TestDetectScopeThresholds(t *testing.T) {
	tests := []struct {
		n    int
		want platform.Scope
	}{
		{0, platform.ScopeLow},
		{1, platform.ScopeLow},
		{2, platform.ScopeMedium},
		{3, platform.ScopeMedium},
		{4, platform.ScopeHigh},
		{9, platform.ScopeHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, platform.ScopeFromCount(tt.n), "count %d", tt.n)
	}
}

func TestDetectDirectoryOnlyDefaultsToLow(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))

	d := platform.NewDetector(nil)
	det := d.Detect(platform.Request{
		Text:        "Fix the typo in the welcome email copy.",
		Directories: map[platform.Platform]string{platform.DevOps: dir},
	})

	require.Len(t, det.Requirements, 1)
	r := det.Requirements[0]
	assert.Equal(t, platform.DevOps, r.Platform)
	assert.Equal(t, platform.ScopeLow, r.Scope)
	assert.Equal(t, []platform.Source{platform.SourceDirectory}, r.Sources)
	assert.Equal(t, dir, r.Directory)
}

func TestDetectEmptyDirectoryIsNotEvidence(t *testing.T) {
	d := platform.NewDetector(nil)
	det := d.Detect(platform.Request{
		Directories: map[platform.Platform]string{platform.Mobile: t.TempDir()},
	})
	assert.Equal(t, []platform.Platform{platform.Backend}, det.Platforms())
}

func TestDetectForcedIsVerbatim(t *testing.T) {
	called := false
	d := platform.NewDetector(nil, platform.WithDirectoryCheck(func(string) bool {
		called = true
		return true
	}))
	det := d.Detect(platform.Request{
		Text:        "kubernetes helm docker terraform",
		Directories: map[platform.Platform]string{platform.DevOps: "/nonexistent"},
		Force:       []platform.Platform{platform.Mobile, platform.Frontend, platform.Mobile, "desktop"},
	})

	assert.False(t, called, "forced detection must not inspect directories")
	assert.Equal(t, []platform.Platform{platform.Mobile, platform.Frontend}, det.Platforms())
	for _, r := range det.Requirements {
		assert.Equal(t, []platform.Source{platform.SourceForced}, r.Sources)
	}
}

func TestDetectCustomKeywords(t *testing.T) {
	d := platform.NewDetector(platform.Keywords{
		platform.Mobile: {"watchos"},
	})
	det := d.Detect(platform.Request{Text: "New WatchOS complication"})
	assert.Equal(t, []platform.Platform{platform.Mobile}, det.Platforms())

	det = d.Detect(platform.Request{Text: "New REST API"})
	assert.Equal(t, []platform.Platform{platform.Backend}, det.Platforms(), "unlisted families fall back to the floor")
}

func TestParseList(t *testing.T) {
	got, err := platform.ParseList("fe, backend,FE,ops")
	require.NoError(t, err)
	assert.Equal(t, []platform.Platform{platform.Frontend, platform.Backend, platform.DevOps}, got)

	_, err = platform.ParseList("frontend,desktop")
	assert.Error(t, err)

	got, err = platform.ParseList("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveDirectories(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		t.Helper()
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	write("web/a.tsx")
	write("web/b.tsx")
	write("web/c.css")
	write("server/main.go")
	write("server/db.sql")
	write("infra/main.tf")
	write("infra/vars.tf")
	write("infra/Dockerfile")

	got, err := platform.ResolveDirectories(root, nil, 3)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "web"), got[platform.Frontend])
	assert.Equal(t, filepath.Join(root, "infra"), got[platform.DevOps])
	_, ok := got[platform.Backend]
	assert.False(t, ok, "two backend files are below the threshold")

	_, err = platform.ResolveDirectories(filepath.Join(root, "missing"), nil, 3)
	assert.Error(t, err)
}
