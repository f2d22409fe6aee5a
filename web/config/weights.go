package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/screwyprof/oppfeed/feed"
)

// ErrWeightsFile is returned when the weights file cannot be read or parsed
var ErrWeightsFile = errors.New("weights file")

// LoadWeights reads scoring weights from a YAML file. Keys left out keep their default value.
// An empty path returns the defaults.
func LoadWeights(path string) (feed.Weights, error) {
	if path == "" {
		return feed.DefaultWeights(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return feed.Weights{}, fmt.Errorf("%w: %w", ErrWeightsFile, err)
	}
	return ParseWeights(raw)
}

// ParseWeights decodes YAML over the default weights and validates the result
func ParseWeights(raw []byte) (feed.Weights, error) {
	w := feed.DefaultWeights()

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&w); err != nil && !errors.Is(err, io.EOF) {
		return feed.Weights{}, fmt.Errorf("%w: %w", ErrWeightsFile, err)
	}

	if err := w.Validate(); err != nil {
		return feed.Weights{}, err
	}
	return w, nil
}
