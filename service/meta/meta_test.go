package meta

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

func TestExpandEnv(t *testing.T) {
	env := map[string]string{"FOO": "bar", "A": "1", "B": "2", "X": "x"}
	lookup := func(key string) string { return env[key] }

	var testCases = []struct {
		description string
		input       string
		expect      string
	}{
		{description: "no expressions", input: "just a plain string", expect: "just a plain string"},
		{description: "single expression", input: "value is ${env.FOO}", expect: "value is bar"},
		{description: "multiple expressions", input: "${env.A}-${env.B}-${env.A}", expect: "1-2-1"},
		{description: "unset variable becomes empty", input: "unset=${env.NOTSET}-end", expect: "unset=-end"},
		{description: "invalid key is kept", input: "start ${env.X and ${env.B} end", expect: "start ${env.X and 2 end"},
		{description: "missing closing brace", input: "start ${env.X", expect: "start ${env.X"},
		{description: "prefix only no key", input: "oops ${env.} done", expect: "oops  done"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expect, ExpandEnv(testCase.input, lookup))
		})
	}
}

func TestExpandEnv_ProcessEnvironment(t *testing.T) {
	t.Setenv("ACCESSFLOW_META_TEST", "steward@company.com")
	assert.Equal(t, "email: steward@company.com", ExpandEnv("email: ${env.ACCESSFLOW_META_TEST}", nil))
}

func TestService_Download(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	location := "mem://localhost/meta/policy.yaml"
	require.NoError(t, fs.Upload(ctx, location, 0644, strings.NewReader("mode: ${env.MODE}\n")))

	service := New(fs, WithLookup(func(key string) string {
		if key == "MODE" {
			return "single"
		}
		return ""
	}))
	data, err := service.Download(ctx, location)
	require.NoError(t, err)
	assert.Equal(t, "mode: single\n", string(data))

	exists, err := service.Exists(ctx, location)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = service.Download(ctx, "mem://localhost/meta/missing.yaml")
	assert.Error(t, err)
	_, err = service.Download(ctx, "")
	assert.Error(t, err)
}
