package e2e_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contentDump = `TxpoolContent {
    pending: {
        0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266: {
            "0": Transaction {
                inner: Eip1559(
                    Signed {
                        tx: TxEip1559 {
                            chain_id: 31337,
                            nonce: 0,
                            gas_limit: 21000,
                            max_fee_per_gas: 2000000000,
                            max_priority_fee_per_gas: 1000000000,
                            to: Call(0x70997970c51812dc3a010c7d01b50e0d17dc79c8),
                            value: 1000000000000000000,
                            access_list: AccessList([]),
                            input: 0x,
                        },
                        signature: Signature { y_parity: false, r: 0x2a, s: 0x3b },
                        hash: 0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060,
                    },
                ),
                block_hash: None,
                block_number: None,
                transaction_index: None,
                effective_gas_price: None,
                from: 0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266,
            },
        },
    },
    queued: {},
}`

func runCLI(t *testing.T, stdin string, env []string, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command("go", append([]string{"run", "../../main.go"}, args...)...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// TestEndToEnd_TxpoolContent converts a file and checks the JSON keeps the dump's shape
func TestEndToEnd_TxpoolContent(t *testing.T) {
	tempDir := t.TempDir()

	dumpFile := filepath.Join(tempDir, "content.txt")
	require.NoError(t, os.WriteFile(dumpFile, []byte(contentDump), 0644))
	outputFile := filepath.Join(tempDir, "content.json")

	_, stderr, err := runCLI(t, "", nil, "-i", dumpFile, "-o", outputFile, "--no-metrics")
	require.NoError(t, err, "CLI command failed: %s", stderr)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	pending := doc["pending"].(map[string]any)
	sender := pending["0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"].(map[string]any)
	tx := sender["0"].(map[string]any)

	assert.Nil(t, tx["block_hash"])
	assert.Equal(t, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", tx["from"])

	signed := tx["inner"].(map[string]any)["Eip1559"].(map[string]any)
	inner := signed["tx"].(map[string]any)
	assert.Equal(t, float64(31337), inner["chain_id"])
	assert.Equal(t, "1000000000000000000", inner["value"], "values above 2^53-1 stay exact")
	assert.Equal(t, map[string]any{"Call": "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"}, inner["to"])
	assert.Equal(t, map[string]any{"AccessList": []any{}}, inner["access_list"])
	assert.Equal(t, "0x", inner["input"])
	assert.Equal(t, map[string]any{}, doc["queued"])

	// Metrics are logged locally when export is disabled.
	assert.Contains(t, stderr, "name=txpool.type_wrapper.instances wrapper_type=Eip1559 value=1")
	assert.Contains(t, stderr, "JSON written")
}

func TestEndToEnd_Scenarios(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		args     []string
		expected string
		isError  bool
		stderr   []string
	}{
		{
			name:     "StructWithHexAndNumber",
			input:    `Transaction { hash: 0x1a, value: 100 }`,
			expected: "{\"hash\":\"0x1a\",\"value\":100}\n",
		},
		{
			name:     "HexAsNumber",
			input:    `Transaction { hash: 0x1a, value: 100 }`,
			args:     []string{"--hex-mode", "number"},
			expected: "{\"hash\":26,\"value\":100}\n",
		},
		{
			name:     "WrapperAroundStruct",
			input:    `Eip1559(Transaction { gas: None })`,
			expected: "{\"Eip1559\":{\"gas\":null}}\n",
		},
		{
			name:     "Pretty",
			input:    `Foo { a: [1, 2,] }`,
			args:     []string{"--pretty"},
			expected: "{\n  \"a\": [\n    1,\n    2\n  ]\n}\n",
		},
		{
			name:     "EmptySequence",
			input:    `[]`,
			expected: "[]\n",
		},
		{
			name:    "MissingValue",
			input:   `Transaction { hash: }`,
			isError: true,
			stderr: []string{
				"Parse error: UnexpectedTokenError at 1:21",
				"Transaction { hash: }\n                    ^",
			},
		},
		{
			name:    "DuplicateField",
			input:   `Foo { a: 1, a: 2 }`,
			isError: true,
			stderr:  []string{"DuplicateFieldError at 1:13", `duplicate field "a" in Foo`},
		},
		{
			name:    "Unterminated",
			input:   "[\n  Foo { a: 1 },\n",
			isError: true,
			stderr:  []string{"UnterminatedCompositeError at 3:1"},
		},
		{
			name:    "BadCharacter",
			input:   `[1, @2]`,
			isError: true,
			stderr:  []string{"LexicalError at 1:5"},
		},
		{
			name:    "EmptyInput",
			input:   "  \n",
			isError: true,
			stderr:  []string{"empty"},
		},
		{
			name:    "InvalidHexMode",
			input:   `[]`,
			args:    []string{"--hex-mode", "octal"},
			isError: true,
			stderr:  []string{"Configuration error"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"--no-metrics"}, tc.args...)
			stdout, stderr, err := runCLI(t, tc.input, nil, args...)

			if tc.isError {
				assert.Error(t, err, "Expected an error for %s", tc.name)
				assert.Empty(t, stdout, "no JSON may be written on failure")
				for _, s := range tc.stderr {
					assert.Contains(t, stderr, s)
				}
			} else {
				assert.NoError(t, err, "Unexpected error for %s: %s", tc.name, stderr)
				assert.Equal(t, tc.expected, stdout)
			}
		})
	}
}

func TestEndToEnd_MetricsEndpointFromEnv(t *testing.T) {
	var pushes atomic.Int32
	var body atomic.Value
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/metrics/job/txpool2json/") {
			pushes.Add(1)
			body.Store(r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer gateway.Close()

	stdout, stderr, err := runCLI(t, `Foo { a: Some(1) }`,
		[]string{"TXPOOL_METRICS_ENDPOINT=" + gateway.URL}, "-d")
	require.NoError(t, err, stderr)

	assert.Equal(t, "{\"a\":1}\n", stdout)
	assert.Equal(t, int32(1), pushes.Load())
	assert.NotEmpty(t, body.Load())
	assert.Contains(t, stderr, "metrics exported")
}

func TestEndToEnd_UnreachableMetricsSink(t *testing.T) {
	gateway := httptest.NewServer(http.NotFoundHandler())
	endpoint := gateway.URL
	gateway.Close()

	stdout, stderr, err := runCLI(t, `Foo { a: 1 }`, nil, "--metrics-endpoint", endpoint)
	require.NoError(t, err, stderr)

	assert.Equal(t, "{\"a\":1}\n", stdout)
	assert.Contains(t, stderr, "metrics export failed, logging locally")
	assert.Contains(t, stderr, "name=txpool.field.replacements value=1")
}

func TestEndToEnd_ConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "txpool2json.yml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
metrics:
  enabled: false
render:
  pretty: true
  indent: "    "
  transparent: []
`), 0644))

	stdout, stderr, err := runCLI(t, `Foo { a: Some(1) }`, nil, "-c", configFile)
	require.NoError(t, err, stderr)
	assert.Equal(t, "{\n    \"a\": {\n        \"Some\": 1\n    }\n}\n", stdout)
}

func TestEndToEnd_Version(t *testing.T) {
	stdout, _, err := runCLI(t, "", nil, "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "txpool2json version")
}
