package warp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FitFile is the JSON form of a FittedTransform.
type FitFile struct {
	Regularization float64     `json:"regularization"`
	Control        [][]float64 `json:"control"` // V, k×4 homogeneous
	Affine         [][]float64 `json:"affine"`  // D, 4×4
	Weights        [][]float64 `json:"weights"` // W, k×4
	CreatedAt      int64       `json:"createdAt"`
}

// SaveFit writes ft to path as JSON, creating the directory if needed.
func SaveFit(path string, ft *FittedTransform) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating fit directory: %w", ErrOutput, err)
	}

	doc := FitFile{
		Regularization: ft.Regularization,
		Control:        rowsOf(ft.Control.Matrix()),
		Affine:         rowsOf(ft.Affine),
		Weights:        rowsOf(ft.Weights),
		CreatedAt:      time.Now().Unix(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling fit: %w", ErrOutput, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing fit file: %w", ErrOutput, err)
	}
	return nil
}

// LoadFit reads a transform written by SaveFit and checks its shapes.
func LoadFit(path string) (*FittedTransform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: fit file not found: %s", ErrInput, path)
		}
		return nil, fmt.Errorf("%w: reading fit file: %w", ErrInput, err)
	}

	var doc FitFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing fit file: %w", ErrInput, err)
	}
	return doc.Transform()
}

// Transform rebuilds the FittedTransform, validating every matrix.
func (f *FitFile) Transform() (*FittedTransform, error) {
	cm, err := denseOf(f.Control, HomogeneousDim)
	if err != nil {
		return nil, fmt.Errorf("%w: control: %w", ErrInput, err)
	}
	control, err := NewPointSet(cm)
	if err != nil {
		return nil, fmt.Errorf("control: %w", err)
	}

	affine, err := denseOf(f.Affine, HomogeneousDim)
	if err != nil {
		return nil, fmt.Errorf("%w: affine: %w", ErrInput, err)
	}
	if r, _ := affine.Dims(); r != HomogeneousDim {
		return nil, fmt.Errorf("%w: affine has %d rows, want %d", ErrInput, r, HomogeneousDim)
	}

	weights, err := denseOf(f.Weights, HomogeneousDim)
	if err != nil {
		return nil, fmt.Errorf("%w: weights: %w", ErrInput, err)
	}
	if r, _ := weights.Dims(); r != control.Len() {
		return nil, fmt.Errorf("%w: %d weight rows for %d control points", ErrCardinality, r, control.Len())
	}

	if firstNonFinite(affine) >= 0 || firstNonFinite(weights) >= 0 {
		return nil, fmt.Errorf("%w: fit contains non-finite values", ErrInput)
	}
	if f.Regularization < 0 {
		return nil, fmt.Errorf("%w: negative regularization %v", ErrInput, f.Regularization)
	}

	return &FittedTransform{
		Control:        control,
		Affine:         affine,
		Weights:        weights,
		Regularization: f.Regularization,
	}, nil
}
