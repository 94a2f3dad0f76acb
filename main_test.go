package main

import (
	"bytes"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/txpool2json/internal/config"
	"github.com/mcncl/txpool2json/internal/errors"
	"github.com/mcncl/txpool2json/internal/formatter"
)

const sampleDump = `TxpoolContent {
    pending: {
        0x70997970c51812dc3a010c7d01b50e0d17dc79c8: {
            "0": Transaction {
                hash: 0x1a,
                nonce: 0,
                gas: 21000,
                value: 1000000000000000000000,
                chain_id: Some(31337),
                input: 0x,
            },
        },
    },
    queued: {},
}`

func testContext(t *testing.T, mutate func(cfg *config.Config)) (*Context, *bytes.Buffer) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Metrics.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	var logs bytes.Buffer
	return &Context{Config: cfg, Logger: newLogger(&logs, true)}, &logs
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRun_WithOutputFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "content.json")
	ctx, logs := testContext(t, func(cfg *config.Config) {
		cfg.Output.Path = output
	})

	require.NoError(t, run(ctx, sampleDump))

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t,
		`{"pending":{"0x70997970c51812dc3a010c7d01b50e0d17dc79c8":{"0":{"hash":"0x1a","nonce":0,"gas":21000,"value":"1000000000000000000000","chain_id":31337,"input":"0x"}}},"queued":{}}`+"\n",
		string(content))

	assert.Contains(t, logs.String(), "JSON written")
	assert.Contains(t, logs.String(), "name=txpool.field.replacements value=8")
	assert.Contains(t, logs.String(), "wrapper_type=Transaction value=1")
}

func TestRun_PrettyHexNumbers(t *testing.T) {
	output := filepath.Join(t.TempDir(), "content.json")
	ctx, _ := testContext(t, func(cfg *config.Config) {
		cfg.Output.Path = output
		cfg.Render.Pretty = true
		cfg.Render.HexMode = config.HexModeNumber
	})

	require.NoError(t, run(ctx, `Transaction { hash: 0x1a, gas: 21000 }`))

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"hash\": 26,\n  \"gas\": 21000\n}\n", string(content))
}

func TestRun_FailureLeavesNoOutput(t *testing.T) {
	output := filepath.Join(t.TempDir(), "content.json")
	ctx, logs := testContext(t, func(cfg *config.Config) {
		cfg.Output.Path = output
	})

	src := `Transaction { hash: }`
	err := run(ctx, src)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, &errors.ParseError{Kind: errors.KindUnexpectedToken}))

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
	assert.Contains(t, logs.String(), "error_type=unexpected_token_error error_line=1 error_column=21")
}

func TestRun_PushesMetrics(t *testing.T) {
	var pushes atomic.Int32
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/metrics/job/txpool2json/instance/") {
			pushes.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	ctx, logs := testContext(t, func(cfg *config.Config) {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Endpoint = gateway.URL
		cfg.Output.Path = filepath.Join(t.TempDir(), "out.json")
	})

	require.NoError(t, run(ctx, `Foo { a: 1 }`))
	assert.Equal(t, int32(1), pushes.Load(), "run waits for the pending push")
	assert.Contains(t, logs.String(), "metrics exported")
}

func TestRun_UnreachableSinkDoesNotFailJob(t *testing.T) {
	gateway := httptest.NewServer(http.NotFoundHandler())
	endpoint := gateway.URL
	gateway.Close()

	output := filepath.Join(t.TempDir(), "out.json")
	ctx, logs := testContext(t, func(cfg *config.Config) {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Endpoint = endpoint
		cfg.Metrics.FlushTimeout = 2 * time.Second
		cfg.Output.Path = output
	})

	require.NoError(t, run(ctx, `Foo { a: 1 }`))

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n", string(content))
	assert.Contains(t, logs.String(), "metrics export failed, logging locally")
}

func TestReadInput_FromFile(t *testing.T) {
	originalCLI := CLI
	defer func() { CLI = originalCLI }()

	CLI.Input = writeTemp(t, "dump.txt", sampleDump)

	src, err := readInput()
	require.NoError(t, err)
	assert.Equal(t, sampleDump, src)
}

func TestReadInput_FromStdin(t *testing.T) {
	originalCLI := CLI
	originalStdin := os.Stdin
	defer func() {
		CLI = originalCLI
		os.Stdin = originalStdin
	}()

	CLI.Input = ""

	r, w, err := os.Pipe()
	require.NoError(t, err)
	go func() {
		defer func() { _ = w.Close() }()
		_, _ = w.WriteString(sampleDump)
	}()
	os.Stdin = r
	defer func() { _ = r.Close() }()

	src, err := readInput()
	require.NoError(t, err)
	assert.Equal(t, sampleDump, src)
}

func TestReadInput_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		sentinel error
	}{
		{"empty file", writeTemp(t, "empty.txt", ""), errors.ErrFileEmpty},
		{"missing file", "/non/existent/dump.txt", errors.ErrFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalCLI := CLI
			defer func() { CLI = originalCLI }()

			CLI.Input = tt.input
			_, err := readInput()
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, tt.sentinel))
		})
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	originalCLI := CLI
	defer func() { CLI = originalCLI }()

	CLI.Config = writeTemp(t, "txpool2json.yml", "render:\n  hex_mode: number\n  indent: \"\\t\"\n")
	CLI.Pretty = true
	CLI.NoMetrics = true

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Render.Pretty)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, config.HexModeNumber, cfg.Render.HexMode)

	opts := renderOptions(cfg)
	assert.Equal(t, formatter.HexNumber, opts.Hex)
	assert.Equal(t, "\t", opts.Indent)
	assert.Equal(t, []string{"Some"}, opts.Transparent)
}

func TestLoadConfig_Invalid(t *testing.T) {
	originalCLI := CLI
	defer func() { CLI = originalCLI }()

	CLI.Config = ""
	CLI.HexMode = "octal"

	_, err := loadConfig()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfig))
	assert.True(t, strings.HasPrefix(errors.UserFriendlyError(err), "Configuration error:"))
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, true).Debug("shown")
	assert.Contains(t, buf.String(), "shown")

}
