package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// manifestReader extracts dependency tokens from one manifest file.
type manifestReader func(content []byte) ([]string, error)

var manifestReaders = []struct {
	name string
	read manifestReader
}{
	{name: "package.json", read: packageJSONTokens},
	{name: "ui5.yaml", read: ui5Tokens},
	{name: "mta.yaml", read: mtaTokens},
}

func readManifests(ctx context.Context, dir string, tokens *tokenSet) {
	for _, m := range manifestReaders {
		path := filepath.Join(dir, m.name)
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		found, err := m.read(content)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("manifest", path).Warn("skipping malformed manifest")
			continue
		}
		tokens.add(found...)
	}
}

// packageJSONTokens returns the dependency names of a package.json, plus
// "cds" when the project carries a cds configuration section.
func packageJSONTokens(content []byte) ([]string, error) {
	if !gjson.ValidBytes(content) {
		return nil, errors.New("package.json is not valid JSON")
	}

	doc := gjson.ParseBytes(content)
	var tokens []string
	for _, section := range []string{"dependencies", "devDependencies", "peerDependencies"} {
		var names []string
		doc.Get(section).ForEach(func(key, _ gjson.Result) bool {
			names = append(names, key.String())
			return true
		})
		sort.Strings(names)
		tokens = append(tokens, names...)
	}
	if doc.Get("cds").Exists() {
		tokens = append(tokens, "cds")
	}
	return tokens, nil
}

type ui5Manifest struct {
	Framework struct {
		Name      string `yaml:"name"`
		Libraries []struct {
			Name string `yaml:"name"`
		} `yaml:"libraries"`
	} `yaml:"framework"`
}

// ui5Tokens returns the framework and library names of a ui5.yaml.
func ui5Tokens(content []byte) ([]string, error) {
	var m ui5Manifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse ui5.yaml")
	}
	var tokens []string
	if m.Framework.Name != "" {
		tokens = append(tokens, m.Framework.Name)
	}
	for _, lib := range m.Framework.Libraries {
		tokens = append(tokens, lib.Name)
	}
	return tokens, nil
}

type mtaManifest struct {
	Modules []struct {
		Type string `yaml:"type"`
	} `yaml:"modules"`
	Resources []struct {
		Type string `yaml:"type"`
	} `yaml:"resources"`
}

// mtaTokens returns the module and resource types of an mta.yaml.
func mtaTokens(content []byte) ([]string, error) {
	var m mtaManifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse mta.yaml")
	}
	var tokens []string
	for _, mod := range m.Modules {
		tokens = append(tokens, mod.Type)
	}
	for _, res := range m.Resources {
		tokens = append(tokens, res.Type)
	}
	return tokens, nil
}
