package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runNormalize(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("COMMISSION_CONFIG_PATH", "")

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"normalize"}, args...))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestNormalizeText(t *testing.T) {
	out := runNormalize(t, "007", "Perfumería", "")

	assert.Equal(t, "\"007\"\t7\n\"Perfumería\"\tfragrance\n\"\"\tuncategorized\n", out)
}

func TestNormalizeJSON(t *testing.T) {
	out := runNormalize(t, "--format", "json", "10", "7")

	var values []normalizedValue
	require.NoError(t, json.Unmarshal([]byte(out), &values))
	assert.Equal(t, []normalizedValue{
		{Raw: "10", Group: "fragrance"},
		{Raw: "7", Group: "7"},
	}, values)
}

func TestNormalizeUsesRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commission.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
classification:
  uncategorized_key: sin_categoria
  merge_groups:
    - key: skincare
      codes: [7, 8]
      synonyms: [cuidado de la piel]
`), 0o600))

	out := runNormalize(t, "--commission-config", path, "08", "Cuidado de la piel", " ")

	assert.Equal(t, "\"08\"\tskincare\n\"Cuidado de la piel\"\tskincare\n\" \"\tsin_categoria\n", out)
}
