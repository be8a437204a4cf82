package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtraction_Validate(t *testing.T) {
	e := Extraction{}
	require.Error(t, e.Validate())

	e = Extraction{DocumentID: 42}
	require.NoError(t, e.Validate())
	assert.Equal(t, ExtractionStatusPending, e.Status)

	e = Extraction{DocumentID: 42, Status: ExtractionStatusCompleted}
	require.NoError(t, e.Validate())
	assert.Equal(t, ExtractionStatusCompleted, e.Status)
}
