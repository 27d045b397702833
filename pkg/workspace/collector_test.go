package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFSCollectorManifests(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{
  "name": "bookshop",
  "dependencies": {"@sap/cds": "^8", "express": "^4"},
  "devDependencies": {"@cap-js/sqlite": "^1"},
  "cds": {"requires": {"db": "sql"}}
}`)
	writeFile(t, filepath.Join(root, "mta.yaml"), `ID: bookshop
modules:
  - name: srv
    type: nodejs
  - name: db-deployer
    type: hdb
resources:
  - name: uaa
    type: org.cloudfoundry.managed-service
`)
	writeFile(t, filepath.Join(root, "app", "books", "ui5.yaml"), `specVersion: "3.0"
framework:
  name: SAPUI5
  libraries:
    - name: sap.m
    - name: sap.fe.templates
`)
	writeFile(t, filepath.Join(root, "app", "books", "webapp", "manifest.json"), `{}`)

	c := NewFSCollector(root, false)
	sig, err := c.Collect(context.Background(), Input{
		Files:  []string{"app/books/webapp/manifest.json"},
		Prompt: "add a list report",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"app/books/webapp/manifest.json"}, sig.ActiveFiles)
	assert.Equal(t, "add a list report", sig.PromptText)
	assert.Equal(t, []string{
		"@sap/cds", "express", "@cap-js/sqlite", "cds",
		"nodejs", "hdb", "org.cloudfoundry.managed-service",
		"SAPUI5", "sap.m", "sap.fe.templates",
	}, sig.ManifestTokens)
}

func TestFSCollectorMalformedManifestsAreSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"dependencies": {`)
	writeFile(t, filepath.Join(root, "ui5.yaml"), "framework: [unclosed\n")
	writeFile(t, filepath.Join(root, "mta.yaml"), "modules:\n  - type: nodejs\n")

	sig, err := NewFSCollector(root, false).Collect(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, []string{"nodejs"}, sig.ManifestTokens)
	assert.Empty(t, sig.ActiveFiles)
}

func TestFSCollectorSortByModTime(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "db", "schema.cds")
	recent := filepath.Join(root, "srv", "service.cds")
	writeFile(t, old, "entity Books {}")
	writeFile(t, recent, "service Catalog {}")

	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(recent, now, now))

	files := []string{"db/schema.cds", "missing.cds", recent}

	sig, err := NewFSCollector(root, true).Collect(context.Background(), Input{Files: files})
	require.NoError(t, err)
	assert.Equal(t, []string{"srv/service.cds", "db/schema.cds", "missing.cds"}, sig.ActiveFiles)

	sig, err = NewFSCollector(root, false).Collect(context.Background(), Input{Files: files})
	require.NoError(t, err)
	assert.Equal(t, []string{"db/schema.cds", "missing.cds", "srv/service.cds"}, sig.ActiveFiles)
}

func TestFSCollectorInvalidRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	writeFile(t, file, "x")

	_, err := NewFSCollector(filepath.Join(root, "missing"), false).Collect(context.Background(), Input{})
	assert.Error(t, err)

	_, err = NewFSCollector(file, false).Collect(context.Background(), Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestManifestDirs(t *testing.T) {
	root := "/work"
	dirs := manifestDirs(root, []workspaceFile{
		{abs: "/work/app/books/webapp/manifest.json"},
		{abs: "/work/db/schema.cds"},
		{abs: "/elsewhere/x.cds"},
	})
	assert.Equal(t, []string{"/work", "/work/app", "/work/app/books", "/work/app/books/webapp", "/work/db"}, dirs)
}
