package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonkenneth/RNB-coeur/internal/config"
)

func TestParseAreas(t *testing.T) {
	got, err := parseAreas("publish", []string{"nat", "75"})
	require.NoError(t, err)
	assert.Equal(t, []string{"nat", "75"}, got)

	all, err := parseAreas("enqueue", []string{"-all"})
	require.NoError(t, err)
	require.Len(t, all, 102)
	assert.Equal(t, "nat", all[0])

	_, err = parseAreas("publish", nil)
	assert.Error(t, err)

	_, err = parseAreas("publish", []string{"-all", "75"})
	assert.Error(t, err)
}

func TestOpenQueue_UnknownBackend(t *testing.T) {
	_, err := openQueue(config.QueueConfig{Backend: "kafka"})
	assert.ErrorContains(t, err, "kafka")
}
