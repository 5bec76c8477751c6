package model

import (
	"fmt"
	"os"
	"path/filepath"

	ogob "github.com/sw965/omw/encoding/gob"
)

// SaveSnapshot writes the model's parameter tensors to path as a gob file,
// overwriting any previous snapshot. Only parameter data is written: no
// optimizer state, no metadata.
func SaveSnapshot(m Model, path string) error {
	params := m.Params()
	tensors := make([][]float32, len(params))
	for i, p := range params {
		tensors[i] = append([]float32{}, p.Data...)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("model: create snapshot dir: %w", err)
		}
	}
	if err := ogob.Save(&tensors, path); err != nil {
		return fmt.Errorf("model: save snapshot %s: %w", path, err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot into a freshly
// constructed model of the same architecture.
func LoadSnapshot(m Model, path string) error {
	tensors, err := ogob.Load[[][]float32](path)
	if err != nil {
		return fmt.Errorf("model: load snapshot %s: %w", path, err)
	}
	params := m.Params()
	if len(tensors) != len(params) {
		return fmt.Errorf("model: snapshot %s has %d tensors, model has %d", path, len(tensors), len(params))
	}
	for i, p := range params {
		if len(tensors[i]) != len(p.Data) {
			return fmt.Errorf("model: snapshot tensor %d has %d values, param %s has %d",
				i, len(tensors[i]), p.Name, len(p.Data))
		}
		copy(p.Data, tensors[i])
	}
	return nil
}
