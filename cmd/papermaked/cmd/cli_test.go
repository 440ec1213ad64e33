package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// runCmd executes a fresh copy of args against rootCmd's tree and returns
// combined stdout captured through logStdOut, the way the teacher's
// cli_test.go patches package-level output hooks instead of spawning a
// subprocess.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	origLogStdOut := logStdOut
	origExit := osExit
	logStdOut = func(format string, a ...interface{}) (int, error) {
		return fmt.Fprintf(&buf, format, a...)
	}
	t.Cleanup(func() {
		logStdOut = origLogStdOut
		osExit = origExit
	})
	osExit = func(code int) {
		t.Fatalf("unexpected os.Exit(%d)", code)
	}

	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return buf.String()
}

func TestPublishRenderCatManifestRoundTrip(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	tmp := t.TempDir()
	storageRoot := filepath.Join(tmp, "store")
	require.NoError(t, os.MkdirAll(storageRoot, 0o755))

	cfgPath := filepath.Join(tmp, "papermake.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage_root: "+storageRoot+"\n"), 0o600))
	t.Setenv("PAPERMAKE_CONFIG", cfgPath)

	templateDir := filepath.Join(tmp, "template")
	require.NoError(t, os.MkdirAll(templateDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(templateDir, "main.typ"), []byte("hello {{name}}"), 0o600))

	runCmd(t, "publish",
		"--name", "invoice",
		"--tag", "latest",
		"--entrypoint", "main.typ",
		"--dir", templateDir,
		"--author", "acme",
	)

	manifestOut := runCmd(t, "cat-manifest", "--ref", "invoice:latest")
	require.Contains(t, manifestOut, "entrypoint: main.typ")
	require.Contains(t, manifestOut, "main.typ")

	dataPath := filepath.Join(tmp, "data.json")
	require.NoError(t, os.WriteFile(dataPath, []byte(`{"name":"acme"}`), 0o600))
	pdfPath := filepath.Join(tmp, "out.pdf")

	runCmd(t, "render", "--ref", "invoice:latest", "--data", dataPath, "--out", pdfPath)

	pdf, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
}
