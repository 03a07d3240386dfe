package wheel

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// File is the on-disk shape of a segment configuration.
type File struct {
	Segments []Segment `mapstructure:"segments"`
}

// LoadSegments reads segments from a YAML file, or from every YAML file in a
// directory merged in alphabetical order (later files win).
func LoadSegments(path string) (Segments, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat segment config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if info.IsDir() {
		if err := mergeDir(v, path); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read segment config: %w", err)
		}
	}

	var file File
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segment config: %w", err)
	}

	segments := Segments(file.Segments)
	for _, seg := range segments {
		if _, err := seg.PrizeValue(); err != nil {
			return nil, err
		}
	}
	return segments, nil
}

func mergeDir(v *viper.Viper, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read segment config directory: %w", err)
	}

	var yamlFiles []string
	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			yamlFiles = append(yamlFiles, entry.Name())
		}
	}
	if len(yamlFiles) == 0 {
		return fmt.Errorf("no YAML files found in segment config directory: %s", dir)
	}
	sort.Strings(yamlFiles)

	for _, filename := range yamlFiles {
		v.SetConfigFile(filepath.Join(dir, filename))
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("failed to merge segment config from %s: %w", filename, err)
		}
	}
	return nil
}
