package moderation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadWords reads a YAML list of censored words. An empty path means no words.
func LoadWords(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading censored words: %w", err)
	}
	var words []string
	if err = yaml.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("parsing censored words %s: %w", path, err)
	}
	return words, nil
}
