package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryLine_Pairs(t *testing.T) {
	// "=" inside a where clause belongs to the value
	opts, err := parseQueryLine("select=name, age; where=age = 30; descending=true")
	require.NoError(t, err)

	assert.Equal(t, []string{"select", "where", "descending"}, opts.Keys())
	assert.Equal(t, "name, age", opts.Value("select"))
	assert.Equal(t, "age = 30", opts.Value("where"))
	assert.Equal(t, true, opts.Value("descending"))
}

func TestParseQueryLine_JSON(t *testing.T) {
	opts, err := parseQueryLine(`{"select": "dept, count(name)", "groupBy": "dept"}`)
	require.NoError(t, err)
	assert.Equal(t, "dept", opts.Value("groupBy"))
}

func TestParseQueryLine_Errors(t *testing.T) {
	_, err := parseQueryLine("select")
	assert.ErrorContains(t, err, "expected key=value")

	_, err = parseQueryLine("descending=maybe")
	assert.ErrorContains(t, err, "true or false")

	_, err = parseQueryLine(`{"select": `)
	assert.ErrorContains(t, err, "invalid JSON")

	_, err = parseQueryLine(`{"select": "a"} extra`)
	assert.Error(t, err)
}

func TestSplitCommand(t *testing.T) {
	cmd, arg := splitCommand("  LOAD  fixtures/docs.yaml ")
	assert.Equal(t, "load", cmd)
	assert.Equal(t, "fixtures/docs.yaml", arg)

	cmd, arg = splitCommand("status")
	assert.Equal(t, "status", cmd)
	assert.Empty(t, arg)
}
