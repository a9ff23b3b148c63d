package oauth2login

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/magiconair/properties"
)

// PropertiesFilename is the name of the settings file in the app data directory.
const PropertiesFilename = "oauth2.properties"

// Key resolution property keys.
const (
	PropPublicKey         = "publicKey"
	PropPublicKeyFilename = "publicKeyFilename"
	PropKeysURL           = "keysUrl"
)

var envPlaceholder = regexp.MustCompile(`\$\{([^}]+)}`)

// ExpandEnv replaces `${NAME}` placeholders with values from lookup.
// Placeholders lookup cannot resolve are kept as is.
func ExpandEnv(value string, lookup func(string) (string, bool)) string {
	return envPlaceholder.ReplaceAllStringFunc(value, func(m string) string {
		name := envPlaceholder.FindStringSubmatch(m)[1]
		if v, ok := lookup(name); ok {
			return v
		}
		return m
	})
}

// LoadProperties reads a properties file and resolves environment
// placeholders in its values.
func LoadProperties(path string) (map[string]string, error) {
	loader := &properties.Loader{
		Encoding:         properties.UTF8,
		DisableExpansion: true,
	}

	p, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	rv := make(map[string]string, p.Len())
	for k, v := range p.Map() {
		rv[k] = ExpandEnv(v, os.LookupEnv)
	}
	return rv, nil
}

// ParamsFromProperties builds Params from the recognised property keys.
// Every `openmrs.mapping.` key goes into the mapping table.
func ParamsFromProperties(props map[string]string, appDataDir string) Params {
	p := Params{
		PublicKey:         strings.TrimSpace(props[PropPublicKey]),
		PublicKeyFilename: strings.TrimSpace(props[PropPublicKeyFilename]),
		KeysURL:           strings.TrimSpace(props[PropKeysURL]),
		AppDataDir:        appDataDir,
		Mapping:           MappingTable{},
	}

	for k, v := range props {
		if strings.HasPrefix(k, MappingPrefix) {
			p.Mapping[k] = strings.TrimSpace(v)
		}
	}

	return p
}

// LoadParams reads PropertiesFilename from appDataDir.
func LoadParams(appDataDir string) (Params, error) {
	props, err := LoadProperties(filepath.Join(appDataDir, PropertiesFilename))
	if err != nil {
		return Params{}, err
	}
	return ParamsFromProperties(props, appDataDir), nil
}
