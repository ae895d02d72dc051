package profiles

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/jobradar/app/database"
)

// Seed is one declarative profile definition from a YAML file. Seeds are
// matched to stored profiles by name: a seed for an unknown name creates
// the profile, a seed for an existing name updates its search criteria.
type Seed struct {
	Name            string `yaml:"name"`
	Keywords        string `yaml:"keywords"`
	Location        string `yaml:"location"`
	Distance        int    `yaml:"distance"`
	RefreshInterval int    `yaml:"refresh_interval"`
	Enabled         *bool  `yaml:"enabled"`
}

// Loader reads profile seed files from a directory.
type Loader struct {
	profilesDir string
}

func NewLoader(profilesDir string) *Loader {
	return &Loader{profilesDir: profilesDir}
}

// LoadAll reads every YAML seed file in the profiles directory. A missing
// directory is not an error: the service can run purely on API-managed
// profiles.
func (l *Loader) LoadAll() ([]Seed, error) {
	if _, err := os.Stat(l.profilesDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(l.profilesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.profilesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	var seeds []Seed
	for _, file := range files {
		seed, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(seed); err != nil {
			return nil, fmt.Errorf("invalid seed %s: %w", file, err)
		}

		seeds = append(seeds, *seed)
		slog.Info("Loaded profile seed", "file", file, "name", seed.Name)
	}

	return seeds, nil
}

func (l *Loader) loadFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	l.setDefaults(&seed)

	return &seed, nil
}

func (l *Loader) setDefaults(seed *Seed) {
	if seed.Distance == 0 {
		seed.Distance = 25 // miles
	}
	if seed.RefreshInterval == 0 {
		seed.RefreshInterval = 3600 // seconds
	}
}

func (l *Loader) validate(seed *Seed) error {
	if seed.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if seed.Keywords == "" {
		return fmt.Errorf("profile keywords are required")
	}
	if seed.Distance < 0 {
		return fmt.Errorf("distance must be non-negative")
	}
	if seed.RefreshInterval < 60 {
		return fmt.Errorf("refresh interval must be at least 60 seconds")
	}
	return nil
}

// Sync registers seeds in the profile store, creating new profiles and
// updating the criteria of existing ones. Profiles created through the
// API and not present in any seed file are left untouched.
func Sync(repo database.ProfileRepository, seeds []Seed) error {
	for _, seed := range seeds {
		existing, err := repo.GetProfileByName(seed.Name)
		if err != nil {
			return fmt.Errorf("failed to look up profile %q: %w", seed.Name, err)
		}

		enabled := true
		if seed.Enabled != nil {
			enabled = *seed.Enabled
		}

		if existing == nil {
			p := &database.Profile{
				Name:            seed.Name,
				Keywords:        seed.Keywords,
				Location:        seed.Location,
				Distance:        seed.Distance,
				RefreshInterval: seed.RefreshInterval,
				Enabled:         enabled,
			}
			if err := repo.CreateProfile(p); err != nil {
				return fmt.Errorf("failed to create profile %q: %w", seed.Name, err)
			}
			slog.Info("Created profile from seed", "name", seed.Name, "id", p.ID)
			continue
		}

		existing.Keywords = seed.Keywords
		existing.Location = seed.Location
		existing.Distance = seed.Distance
		existing.RefreshInterval = seed.RefreshInterval
		existing.Enabled = enabled
		existing.Deleted = false

		if err := repo.UpdateProfile(existing); err != nil {
			return fmt.Errorf("failed to update profile %q: %w", seed.Name, err)
		}
		slog.Debug("Updated profile from seed", "name", seed.Name, "id", existing.ID)
	}

	return nil
}

// EnsureDefault creates a catch-all starter profile when the store holds
// no profiles at all, so a fresh install ingests something immediately.
func EnsureDefault(repo database.ProfileRepository) error {
	count, err := repo.CountProfiles()
	if err != nil {
		return fmt.Errorf("failed to count profiles: %w", err)
	}
	if count > 0 {
		return nil
	}

	p := &database.Profile{
		Name:            "default",
		Keywords:        "software engineer",
		Location:        "Remote",
		Distance:        25,
		RefreshInterval: 3600,
		Enabled:         true,
	}
	if err := repo.CreateProfile(p); err != nil {
		return fmt.Errorf("failed to create default profile: %w", err)
	}

	slog.Info("Created default profile", "id", p.ID)
	return nil
}
