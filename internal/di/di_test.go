package di

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/email-classifier/internal/adapters/filter"
)

func TestBuildCLIContainer(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	var out bytes.Buffer
	container, err := BuildCLIContainer(&CLIFlags{Provider: "openai", Out: &out})
	require.NoError(t, err)

	err = container.Invoke(func(cli *CLI) {
		assert.IsType(t, &filter.CliFilter{}, cli.Filter)
		assert.NotNil(t, cli.Extractor)
		cli.Close()
	})
	require.NoError(t, err)
}

func TestBuildCLIContainer_RejectsUnknownProvider(t *testing.T) {
	container, err := BuildCLIContainer(&CLIFlags{Provider: "anthropic", Out: &bytes.Buffer{}})
	require.NoError(t, err)

	err = container.Invoke(func(*CLI) {})
	assert.Error(t, err)
}
