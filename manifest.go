package extensionhost

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/spirefy/go-extension-host/types"
	"gopkg.in/yaml.v3"
)

// ManifestFileName is the file Load looks for in every directory below the extensions directory.
const ManifestFileName = "extension.yaml"

// EngineVersion is the version of this host. A manifest's engine constraint is checked against it.
var EngineVersion = "1.0.0"

var (
	// ErrInvalidManifest is returned when a manifest is missing required fields or has malformed values.
	ErrInvalidManifest = errors.New("invalid extension manifest")
	// ErrIncompatibleEngine is returned when a manifest's engine constraint rejects EngineVersion.
	ErrIncompatibleEngine = errors.New("extension requires a different engine version")
)

// ParseManifest decodes a YAML (or JSON, which is valid YAML) manifest.
func ParseManifest(data []byte) (types.Manifest, error) {
	var m types.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return types.Manifest{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return m, nil
}

// ReadManifest reads and parses the manifest at path. A relative Main is resolved against the manifest's directory.
func ReadManifest(path string) (types.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Manifest{}, err
	}

	m, err := ParseManifest(data)
	if err != nil {
		return types.Manifest{}, fmt.Errorf("%s: %w", path, err)
	}

	if m.Main != "" && !filepath.IsAbs(m.Main) {
		m.Main = filepath.Join(filepath.Dir(path), m.Main)
	}
	return m, nil
}

// ValidateManifest checks the fields the host relies on. The version must be semver and, when an engine
// constraint is present, engineVersion must satisfy it.
func ValidateManifest(m types.Manifest, engineVersion string) error {
	if strings.TrimSpace(m.Id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidManifest)
	}

	if _, err := version.NewSemver(m.Version); err != nil {
		return fmt.Errorf("%w: %s: version %q is not a valid SemVer", ErrInvalidManifest, m.Id, m.Version)
	}

	if m.Engine != "" {
		constraints, err := version.NewConstraint(m.Engine)
		if err != nil {
			return fmt.Errorf("%w: %s: engine constraint %q: %w", ErrInvalidManifest, m.Id, m.Engine, err)
		}

		hv, err := version.NewSemver(engineVersion)
		if err != nil {
			return fmt.Errorf("host engine version %q: %w", engineVersion, err)
		}

		if !constraints.Check(hv) {
			return fmt.Errorf("%w: %s wants %q, host is %s", ErrIncompatibleEngine, m.Id, m.Engine, engineVersion)
		}
	}

	seen := make(map[string]struct{}, len(m.Contributes.Commands))
	for _, c := range m.Contributes.Commands {
		if strings.TrimSpace(c.Id) == "" {
			return fmt.Errorf("%w: %s: contributed command without id", ErrInvalidManifest, m.Id)
		}
		if _, dup := seen[c.Id]; dup {
			return fmt.Errorf("%w: %s: command %s contributed twice", ErrInvalidManifest, m.Id, c.Id)
		}
		seen[c.Id] = struct{}{}
	}

	return nil
}

// compareVersions orders two already validated semver strings.
func compareVersions(a, b string) int {
	va, errA := version.NewSemver(a)
	vb, errB := version.NewSemver(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}

func findManifests(root string) ([]string, error) {
	var matching []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == ManifestFileName {
			matching = append(matching, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return matching, nil
}
