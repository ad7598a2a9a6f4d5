package cmd

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

type fatalRecorder struct {
	messages []string
}

func (r *fatalRecorder) Fatalf(format string, v ...interface{}) {
	r.messages = append(r.messages, fmt.Sprintf(format, v...))
}

func (r *fatalRecorder) Fatalln(v ...interface{}) {
	r.messages = append(r.messages, strings.TrimSpace(fmt.Sprintln(v...)))
}

func (r *fatalRecorder) last() string {
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

// resetFlags restores the default value of all flags, which cobra retains across executions
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if slice, ok := f.Value.(pflag.SliceValue); ok {
			_ = slice.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func setupCLI(t *testing.T) *fatalRecorder {
	t.Helper()
	t.Setenv("GRAPHSTORE_BACKEND", backendLocalFS)
	t.Setenv("GRAPHSTORE_PATH", t.TempDir())
	t.Setenv("GRAPHSTORE_LOG_LEVEL", "none")

	recorder := new(fatalRecorder)
	logFatalf, logFatalln = recorder.Fatalf, recorder.Fatalln
	t.Cleanup(func() {
		logFatalf, logFatalln = defaultFatalf, defaultFatalln
	})
	return recorder
}

var (
	defaultFatalf  = logFatalf
	defaultFatalln = logFatalln
)

func runCommand(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	require.NoError(t, rootCmd.Execute(), "command %v", args)
	return strings.TrimSpace(out.String())
}

func TestCLIWorkflow(t *testing.T) {
	fatals := setupCLI(t)

	runCommand(t, "", "project", "create", "model_a")
	runCommand(t, "", "project", "create", "model_b")
	require.Empty(t, fatals.messages)
	assert.Equal(t, "model_a\nmodel_b", runCommand(t, "", "project", "list"))

	runCommand(t, "", "project", "create", "model_a")
	assert.Contains(t, fatals.last(), "project already exists")

	root := runCommand(t, `{"type":"node","name":"pump"}`, "object", "put", "--project", "model_a")
	require.Empty(t, fatals.messages[1:])
	require.True(t, strings.HasPrefix(root, "#"), "got %q", root)

	doc := runCommand(t, "", "object", "get", root, "--project", "model_a")
	assert.Contains(t, doc, `"name":"pump"`)
	assert.Contains(t, doc, root)

	c1 := runCommand(t, "", "commit", "create", "--project", "model_a", "--root", root, "--branch", "master", "-m", "first")
	c2 := runCommand(t, "", "commit", "create", "--project", "model_a", "--root", root, "--branch", "master", "-m", "second", "--updater", "alice")
	require.Len(t, fatals.messages, 1)
	assert.NotEqual(t, c1, c2)
	assert.Equal(t, c2, runCommand(t, "", "branch", "get", "master", "--project", "model_a"))

	side := runCommand(t, "", "commit", "create", "--project", "model_a", "--root", root, "--parent", c1, "-m", "side")
	runCommand(t, "", "branch", "set", "feature", "--project", "model_a", "--new", side)
	require.Len(t, fatals.messages, 1)

	branches := runCommand(t, "", "branch", "list", "--project", "model_a")
	assert.Equal(t, "feature\t"+side+"\nmaster\t"+c2, branches)

	assert.Equal(t, c1, runCommand(t, "", "commit", "ancestor", c2, side, "--project", "model_a"))

	log := runCommand(t, "", "commit", "log", "--project", "model_a")
	for _, id := range []string{c1, c2, side} {
		assert.Contains(t, log, id)
	}
	assert.Contains(t, log, "alice")
	assert.Equal(t, 1, strings.Count(runCommand(t, "", "commit", "log", "--project", "model_a", "--max", "1"), "ID:"))

	runCommand(t, "", "branch", "set", "master", "--project", "model_a", "--old", c1, "--new", side)
	assert.Contains(t, fatals.last(), "branch has mismatch")
	assert.Equal(t, c2, runCommand(t, "", "branch", "get", "master", "--project", "model_a"))

	runCommand(t, "", "branch", "delete", "feature", "--project", "model_a", "--old", side)
	require.Len(t, fatals.messages, 2)
	assert.Equal(t, "master\t"+c2, runCommand(t, "", "branch", "list", "--project", "model_a"))

	runCommand(t, "", "branch", "get", "feature", "--project", "model_a")
	assert.Contains(t, fatals.last(), `branch "feature" does not exist`)

	runCommand(t, "", "project", "delete", "model_a")
	assert.Equal(t, "model_b", runCommand(t, "", "project", "list"))

	runCommand(t, "", "branch", "list", "--project", "model_a")
	assert.Contains(t, fatals.last(), "project does not exist")
}

func TestCLIMissingProject(t *testing.T) {
	fatals := setupCLI(t)

	runCommand(t, "", "object", "get", "#abc")
	assert.Contains(t, fatals.last(), "a project is required")
}

func TestCLICompression(t *testing.T) {
	fatals := setupCLI(t)
	t.Setenv("GRAPHSTORE_COMPRESSION", compressionZstd)
	t.Setenv("GRAPHSTORE_PROJECT", "zipped")

	runCommand(t, "", "project", "create", "zipped")
	large := fmt.Sprintf(`{"type":"node","blob":%q}`, strings.Repeat("graph", 200))
	id := runCommand(t, large, "object", "put")
	require.Empty(t, fatals.messages)
	assert.Contains(t, runCommand(t, "", "object", "get", id), strings.Repeat("graph", 200))
}

func TestConfigShow(t *testing.T) {
	fatals := setupCLI(t)
	t.Setenv("GRAPHSTORE_BACKEND", backendMemory)
	t.Setenv("GRAPHSTORE_BADGER_MEMTABLE_SIZE", "128MB")

	out := runCommand(t, "", "config", "show", "--database", "sandbox")
	require.Empty(t, fatals.messages)
	assert.Contains(t, out, "backend: memory")
	assert.Contains(t, out, "database: sandbox")
	assert.Contains(t, out, "memtable-size: 128MB")

	size, err := config.memTableSize()
	require.NoError(t, err)
	assert.EqualValues(t, 128<<20, size)
}

func TestInvalidConfig(t *testing.T) {
	for _, tc := range []struct {
		env, value, expected string
	}{
		{env: "GRAPHSTORE_BACKEND", value: "nosql", expected: "unsupported backend"},
		{env: "GRAPHSTORE_COMPRESSION", value: "lz4", expected: "unsupported compression"},
		{env: "GRAPHSTORE_BADGER_MEMTABLE_SIZE", value: "lots", expected: "badger memtable size"},
	} {
		tc := tc
		t.Run(tc.env, func(t *testing.T) {
			fatals := setupCLI(t)
			t.Setenv(tc.env, tc.value)

			runCommand(t, "", "project", "list")
			require.NotEmpty(t, fatals.messages)
			assert.Contains(t, fatals.messages[0], tc.expected)
		})
	}
}

func TestVersion(t *testing.T) {
	fatals := setupCLI(t)

	var record buildRecord
	require.NoError(t, yaml.Unmarshal([]byte(runCommand(t, "", "version")), &record))
	require.Empty(t, fatals.messages)
	assert.Equal(t, "dev", record.Version)
	assert.Equal(t, runtime.Version(), record.Go)
	assert.ElementsMatch(t, []string{"memory", "badger", "pebble", "localfs"}, record.Backends)

	Release = "v1.2.3"
	t.Cleanup(func() { Release = "" })
	require.NoError(t, yaml.Unmarshal([]byte(runCommand(t, "", "version")), &record))
	assert.Equal(t, "v1.2.3", record.Version)
}
