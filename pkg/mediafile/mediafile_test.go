package mediafile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldValueResolved(t *testing.T) {
	assert.False(t, Unresolved().Resolved())
	assert.False(t, FieldValue{Value: "x", Source: SourceUnresolved}.Resolved())
	assert.False(t, FieldValue{Source: SourceMetadata}.Resolved())
	assert.True(t, FieldValue{Value: "x", Source: SourceMetadata, Confidence: 0.9}.Resolved())
}

func TestFieldValueString(t *testing.T) {
	assert.Equal(t, "(unresolved)", Unresolved().String())
	v := FieldValue{Value: "The Long Haul", Source: SourceCatalogAPI, Confidence: 0.85}
	assert.Equal(t, "The Long Haul [catalog_api 0.85]", v.String())
}

func TestWorkTitlePrefersAlbum(t *testing.T) {
	m := &ParsedMetadata{Title: "Chapter 1", Album: "The Long Haul"}
	assert.Equal(t, "The Long Haul", m.WorkTitle())

	m = &ParsedMetadata{Title: "A Standalone Work"}
	assert.Equal(t, "A Standalone Work", m.WorkTitle())
}

func TestSourcePriorityOrder(t *testing.T) {
	assert.Less(t, SourcePriority[SourceMetadata], SourcePriority[SourceCatalogAPI])
	assert.Less(t, SourcePriority[SourceCatalogAPI], SourcePriority[SourceLanguageModel])
	assert.Less(t, SourcePriority[SourceLanguageModel], SourcePriority[SourceWebSearch])
	assert.Less(t, SourcePriority[SourceWebSearch], SourcePriority[SourceHeuristic])
}
