package invoke

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/deixis/falconctl/internal/artifact"
	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/runner"
)

func testConfig(root string) config.RunConfiguration {
	return config.RunConfiguration{
		DatabasePath: "/db/main.fdb",
		OutputDir:    "/data/out",
		Tables:       []string{"A"},
		Parallelism:  4,
		PoolSize:     8,
		User:         "SYSDBA",
		Password:     "s3cr3t",
		ProjectRoot:  root,
		AutoBuild:    true,
		Platform:     config.POSIX,
	}
}

func TestBuildArgv_Binary(t *testing.T) {
	cfg := testConfig("/opt/falcon")
	desc := artifact.Descriptor{Platform: config.POSIX, Path: "/opt/falcon/target/release/firebird_peregrine_falcon", Kind: artifact.Binary}

	argv, err := BuildArgv(desc, cfg, "ORDERS")
	if err != nil {
		t.Fatal(err)
	}
	want := "/opt/falcon/target/release/firebird_peregrine_falcon --database /db/main.fdb --out-dir /data/out --table ORDERS --parallelism 4 --pool-size 8 --user SYSDBA --password s3cr3t"
	if got := strings.Join(argv, " "); got != want {
		t.Errorf("argv =\n  %s\nwant\n  %s", got, want)
	}

	cfg.UseCompression = true
	argv, _ = BuildArgv(desc, cfg, "ORDERS")
	if argv[len(argv)-1] != "--use-compression" {
		t.Errorf("last arg = %q, want --use-compression", argv[len(argv)-1])
	}
}

func TestBuildArgv_ShellScript(t *testing.T) {
	cfg := testConfig("/opt/falcon")
	desc := artifact.Descriptor{Platform: config.POSIX, Path: "/opt/falcon/run_extraction.sh", Kind: artifact.ShellScript}

	argv, err := BuildArgv(desc, cfg, "ORDERS")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"sh", "/opt/falcon/run_extraction.sh", "/db/main.fdb", "/data/out", "ORDERS", "4", "8", "SYSDBA", "s3cr3t"}
	if strings.Join(argv, "|") != strings.Join(want, "|") {
		t.Errorf("argv = %v, want %v", argv, want)
	}
}

func TestBuildArgv_PowerShell(t *testing.T) {
	cfg := testConfig(`C:\falcon`)
	cfg.UseCompression = true

	tests := []struct {
		platform config.Platform
		host     string
	}{
		{config.Windows, "powershell.exe"},
		{config.POSIX, "pwsh"},
	}
	for _, tt := range tests {
		desc := artifact.Descriptor{Platform: tt.platform, Path: "run_extraction.ps1", Kind: artifact.PowerShellScript}
		argv, err := BuildArgv(desc, cfg, "ORDERS")
		if err != nil {
			t.Fatal(err)
		}
		if argv[0] != tt.host {
			t.Errorf("%s: host = %q, want %q", tt.platform, argv[0], tt.host)
		}
		joined := strings.Join(argv, " ")
		if !strings.Contains(joined, "-ExecutionPolicy Bypass -File run_extraction.ps1 -Database /db/main.fdb -OutDir /data/out -Table ORDERS") {
			t.Errorf("%s: argv = %s", tt.platform, joined)
		}
		if argv[len(argv)-1] != "-UseCompression" {
			t.Errorf("%s: last arg = %q, want -UseCompression", tt.platform, argv[len(argv)-1])
		}
	}
}

func TestBuildArgv_Deterministic(t *testing.T) {
	cfg := testConfig("/opt/falcon")
	desc := artifact.Descriptor{Platform: config.POSIX, Path: "/bin/falcon", Kind: artifact.Binary}
	a, _ := BuildArgv(desc, cfg, "T")
	b, _ := BuildArgv(desc, cfg, "T")
	if strings.Join(a, "\x00") != strings.Join(b, "\x00") {
		t.Errorf("argv differs between calls: %v vs %v", a, b)
	}
}

func TestBuildArgv_UnknownKind(t *testing.T) {
	_, err := BuildArgv(artifact.Descriptor{Kind: "jar"}, testConfig("/"), "T")
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

type fakeRunner struct {
	argv   []string
	cwd    string
	result *runner.Result
	err    error
}

func (f *fakeRunner) Run(_ context.Context, argv []string, cwd string) (*runner.Result, error) {
	f.argv = argv
	f.cwd = cwd
	return f.result, f.err
}

func binaryDesc() artifact.Descriptor {
	return artifact.Descriptor{Platform: config.POSIX, Path: "/opt/falcon/bin", Kind: artifact.Binary}
}

func TestInvoke_Success(t *testing.T) {
	f := &fakeRunner{result: &runner.Result{RunID: "r1", Stdout: []byte("42 rows")}}
	inv := &Invoker{Runner: f}

	res, err := inv.Invoke(context.Background(), binaryDesc(), testConfig("/opt/falcon"), "A")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != Success || res.ExitCode != 0 || res.ErrorMessage != "" {
		t.Errorf("res = %+v, want success", res)
	}
	if res.Stdout != "42 rows" || res.RunID != "r1" || res.Table != "A" {
		t.Errorf("res = %+v", res)
	}
	if f.cwd != "/opt/falcon" {
		t.Errorf("cwd = %q, want project root", f.cwd)
	}
}

func TestInvoke_NonZeroExit(t *testing.T) {
	f := &fakeRunner{result: &runner.Result{ExitCode: 2, Stderr: []byte("db locked\n")}}
	inv := &Invoker{Runner: f}

	res, err := inv.Invoke(context.Background(), binaryDesc(), testConfig("/opt/falcon"), "B")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != Failure || res.ExitCode != 2 {
		t.Errorf("Status, ExitCode = %s, %d, want failure, 2", res.Status, res.ExitCode)
	}
	if res.ErrorMessage != "db locked" {
		t.Errorf("ErrorMessage = %q, want db locked", res.ErrorMessage)
	}
}

func TestInvoke_NonZeroExitWithoutStderr(t *testing.T) {
	f := &fakeRunner{result: &runner.Result{ExitCode: 3}}
	res, err := (&Invoker{Runner: f}).Invoke(context.Background(), binaryDesc(), testConfig("/opt/falcon"), "B")
	if err != nil {
		t.Fatal(err)
	}
	if res.ErrorMessage != "exit code 3" {
		t.Errorf("ErrorMessage = %q, want exit code 3", res.ErrorMessage)
	}
}

func TestInvoke_Canceled(t *testing.T) {
	f := &fakeRunner{result: &runner.Result{ExitCode: -1, Canceled: true, Cause: context.DeadlineExceeded}}
	res, err := (&Invoker{Runner: f}).Invoke(context.Background(), binaryDesc(), testConfig("/opt/falcon"), "B")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != Failure || !strings.HasPrefix(res.ErrorMessage, "canceled:") {
		t.Errorf("res = %+v, want canceled failure", res)
	}
}

func TestInvoke_LaunchError(t *testing.T) {
	launch := &runner.LaunchError{Command: "pwsh", Err: errors.New("executable file not found")}
	f := &fakeRunner{err: launch}

	_, err := (&Invoker{Runner: f}).Invoke(context.Background(), binaryDesc(), testConfig("/opt/falcon"), "A")
	var le *runner.LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *runner.LaunchError", err)
	}

	res := LaunchFailure("A", err)
	if res.Status != Failure || res.Table != "A" || !strings.Contains(res.ErrorMessage, "pwsh") {
		t.Errorf("LaunchFailure = %+v", res)
	}
}

func TestInvoke_OtherRunnerErrorIsLaunchError(t *testing.T) {
	f := &fakeRunner{err: errors.New(`cwd "/x" is outside workspace "/y"`)}
	_, err := (&Invoker{Runner: f}).Invoke(context.Background(), binaryDesc(), testConfig("/opt/falcon"), "A")
	var le *runner.LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *runner.LaunchError", err)
	}
}

func TestInvoke_PasswordScrubbedFromOutput(t *testing.T) {
	f := &fakeRunner{result: &runner.Result{ExitCode: 1, Stderr: []byte("login failed for SYSDBA/s3cr3t")}}
	res, err := (&Invoker{Runner: f}).Invoke(context.Background(), binaryDesc(), testConfig("/opt/falcon"), "A")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(res.Stderr, "s3cr3t") || strings.Contains(res.ErrorMessage, "s3cr3t") {
		t.Errorf("password leaked: %+v", res)
	}
	// The child still receives the real credential.
	if !strings.Contains(strings.Join(f.argv, " "), "--password s3cr3t") {
		t.Errorf("argv = %v, want cleartext password for the child", f.argv)
	}
}

func TestInvoke_ShortPasswordKeepsDiagnostic(t *testing.T) {
	f := &fakeRunner{result: &runner.Result{ExitCode: 42, Stderr: []byte("error 42: table AGILE locked\n")}}
	cfg := testConfig("/opt/falcon")
	cfg.Password = "a"
	res, err := (&Invoker{Runner: f}).Invoke(context.Background(), binaryDesc(), cfg, "AGILE")
	if err != nil {
		t.Fatal(err)
	}
	if res.ErrorMessage != "error 42: table AGILE locked" {
		t.Errorf("ErrorMessage = %q", res.ErrorMessage)
	}
}

// writeStub writes an executable shell script that fails for table B.
func writeStub(t *testing.T, dir string) string {
	t.Helper()
	script := `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --table) table="$2"; shift ;;
  esac
  shift
done
if [ "$table" = "B" ]; then
  echo "db locked" >&2
  exit 2
fi
echo "extracted $table into $(pwd)"
`
	path := filepath.Join(dir, "falcon-stub")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInvoke_EndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell stub")
	}
	root := t.TempDir()
	desc := artifact.Descriptor{Platform: config.POSIX, Path: writeStub(t, root), Kind: artifact.Binary}
	inv := &Invoker{Runner: &runner.Runner{Workspace: root, Timeout: 10 * time.Second}}
	cfg := testConfig(root)

	ok, err := inv.Invoke(context.Background(), desc, cfg, "A")
	if err != nil {
		t.Fatal(err)
	}
	if !ok.Succeeded() || !strings.Contains(ok.Stdout, "extracted A") {
		t.Errorf("A = %+v, want success", ok)
	}

	bad, err := inv.Invoke(context.Background(), desc, cfg, "B")
	if err != nil {
		t.Fatal(err)
	}
	if bad.Succeeded() || bad.ExitCode != 2 || !strings.Contains(bad.ErrorMessage, "db locked") {
		t.Errorf("B = %+v, want failure with exit 2 and db locked", bad)
	}
}

func TestInvoke_ShellScriptPositional(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
	root := t.TempDir()
	path := filepath.Join(root, artifact.ShellScriptName)
	if err := os.WriteFile(path, []byte("echo \"db=$1 out=$2 table=$3\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	desc := artifact.Descriptor{Platform: config.POSIX, Path: path, Kind: artifact.ShellScript}
	inv := &Invoker{Runner: &runner.Runner{Workspace: root}}

	res, err := inv.Invoke(context.Background(), desc, testConfig(root), "ORDERS")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Stdout, "db=/db/main.fdb out=/data/out table=ORDERS") {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}
