package warp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSaveFit_LoadFit_RoundTrip(t *testing.T) {
	ft, err := Fit(mustPoints(t, cubeLeft), mustPoints(t, cubeRight), 0.75)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "fit.json")
	require.NoError(t, SaveFit(path, ft))

	loaded, err := LoadFit(path)
	require.NoError(t, err)

	assert.Equal(t, 0.75, loaded.Regularization)
	assert.True(t, mat.Equal(ft.Affine, loaded.Affine))
	assert.True(t, mat.Equal(ft.Weights, loaded.Weights))
	assert.True(t, mat.Equal(ft.Control.Matrix(), loaded.Control.Matrix()))

	p := mustPoints(t, vertexCoords)
	want, err := ft.Apply(p)
	require.NoError(t, err)
	got, err := loaded.Apply(p)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}

func TestSaveFit_StampsCreatedAt(t *testing.T) {
	ft, err := Fit(mustPoints(t, cubeLeft), mustPoints(t, cubeRight), 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "fit.json")
	require.NoError(t, SaveFit(path, ft))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc FitFile
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.NotZero(t, doc.CreatedAt)
	assert.Len(t, doc.Control, len(cubeLeft))
	assert.Len(t, doc.Affine, HomogeneousDim)
}

func TestLoadFit_Errors(t *testing.T) {
	identity := [][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
	control := [][]float64{{1, 0, 0, 0}, {1, 1, 0, 0}, {1, 0, 1, 0}, {1, 0, 0, 1}}
	zeros := [][]float64{{0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}}

	tests := []struct {
		name    string
		doc     any
		raw     string
		wantErr error
	}{
		{
			name:    "not JSON",
			raw:     "{not json",
			wantErr: ErrInput,
		},
		{
			name:    "control not homogeneous",
			doc:     FitFile{Control: [][]float64{{2, 0, 0, 0}}, Affine: identity, Weights: zeros[:1]},
			wantErr: ErrInput,
		},
		{
			name:    "affine wrong shape",
			doc:     FitFile{Control: control, Affine: identity[:3], Weights: zeros},
			wantErr: ErrInput,
		},
		{
			name:    "weights row count mismatch",
			doc:     FitFile{Control: control, Affine: identity, Weights: zeros[:2]},
			wantErr: ErrCardinality,
		},
		{
			name:    "ragged weights",
			doc:     FitFile{Control: control, Affine: identity, Weights: [][]float64{{0, 0}, {0}, {0}, {0}}},
			wantErr: ErrInput,
		},
		{
			name:    "negative regularization",
			doc:     FitFile{Regularization: -1, Control: control, Affine: identity, Weights: zeros},
			wantErr: ErrInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(tt.raw)
			if tt.doc != nil {
				var err error
				data, err = json.Marshal(tt.doc)
				require.NoError(t, err)
			}
			path := filepath.Join(t.TempDir(), "fit.json")
			require.NoError(t, os.WriteFile(path, data, 0644))

			_, err := LoadFit(path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadFit_NotFound(t *testing.T) {
	_, err := LoadFit(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrInput)
}
