package output_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rpcwire/rpcwire/internal/cli/errors"
	"github.com/rpcwire/rpcwire/internal/cli/output"
	"github.com/rpcwire/rpcwire/internal/domain/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name   string
		format output.OutputFormat
		raw    string
		want   string
	}{
		{name: "text string", format: output.FormatText, raw: `"hello"`, want: "hello"},
		{name: "text object", format: output.FormatText, raw: `{"a":1}`, want: "{\n  \"a\": 1\n}"},
		{name: "text empty", format: output.FormatText, raw: ``, want: "(no result)"},
		{name: "raw object", format: output.FormatRaw, raw: "{ \"a\" : 1 }", want: `{"a":1}`},
		{name: "raw empty", format: output.FormatRaw, raw: ``, want: `null`},
		{name: "json", format: output.FormatJSON, raw: `[1]`, want: "{\n  \"method\": \"m.x\",\n  \"result\": [\n    1\n  ]\n}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := output.NewFormatter(&bytes.Buffer{}, tt.format, false)
			assert.Equal(t, tt.want, f.FormatResult(output.NewCallResult("m.x", json.RawMessage(tt.raw))))
		})
	}
}

func TestFormatError(t *testing.T) {
	classified := errors.ClassifiedError{Kind: errors.ErrorKindAuth, Message: "Unauthorized", Hint: "log in", Code: 401}

	text := output.NewFormatter(&bytes.Buffer{}, output.FormatText, false).FormatError(classified)
	assert.Equal(t, "Error [auth]: Unauthorized\nHint: log in", text)

	var decoded map[string]any
	js := output.NewFormatter(&bytes.Buffer{}, output.FormatJSON, false).FormatError(classified)
	require.NoError(t, json.Unmarshal([]byte(js), &decoded))
	assert.Equal(t, "auth", decoded["kind"])
	assert.Equal(t, float64(401), decoded["code"])
}

func TestPrintBatch(t *testing.T) {
	rows := []output.BatchRow{
		{Slot: 0, Method: "review.get", ID: "1", Result: json.RawMessage(`{"id":1}`)},
		{Slot: 1},
	}

	var buf bytes.Buffer
	output.NewFormatter(&buf, output.FormatText, false).PrintBatch(rows)
	assert.Contains(t, buf.String(), "review.get")
	assert.Contains(t, buf.String(), `{"id":1}`)

	buf.Reset()
	output.NewFormatter(&buf, output.FormatRaw, false).PrintBatch(rows)
	assert.JSONEq(t, `[{"slot":0,"method":"review.get","id":"1","result":{"id":1}},{"slot":1,"result":null}]`, buf.String())
}

func TestPrintProfiles(t *testing.T) {
	profiles := []profile.Profile{
		{ID: "local", URL: "http://localhost:8075/v1/rpc/"},
		{ID: "prod", URL: "https://reviews.example.com/v1/rpc/", User: "ci", OAuth: &profile.OAuth{ClientID: "x", TokenURL: "y"}, TokenStore: "keychain"},
	}

	var buf bytes.Buffer
	output.NewFormatter(&buf, output.FormatText, false).PrintProfiles(profiles, "prod")
	out := buf.String()
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "basic+oauth")
	assert.Contains(t, out, "keychain")
}

func TestPrintProfiles_JSONHidesSecrets(t *testing.T) {
	profiles := []profile.Profile{{
		ID:       "prod",
		URL:      "https://reviews.example.com/v1/rpc/",
		Password: "hunter2",
		Token:    "tok-123",
		OAuth:    &profile.OAuth{ClientID: "x", TokenURL: "y", RefreshToken: "r-1"},
	}}

	var buf bytes.Buffer
	output.NewFormatter(&buf, output.FormatJSON, false).PrintProfiles(profiles, "prod")
	assert.NotContains(t, buf.String(), "hunter2")
	assert.NotContains(t, buf.String(), "tok-123")
	assert.NotContains(t, buf.String(), "r-1")
	assert.Equal(t, "r-1", profiles[0].OAuth.RefreshToken, "input is not modified")
}
