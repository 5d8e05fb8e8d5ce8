package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/syt-tools/syt/internal/config"
	syterrors "github.com/syt-tools/syt/internal/errors"
	"github.com/syt-tools/syt/internal/logging"
	"github.com/syt-tools/syt/internal/repository"
	tu "github.com/syt-tools/syt/internal/testutil"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// setupRepo isolates config lookup and returns a file:// DSN seeded with the
// fixture tree after prepare has run on it.
func setupRepo(t *testing.T, prepare ...func(*repository.Memory)) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, env := range []string{"SYT_REPOSITORY_URL", "SYT_AUTH_USERNAME", "SYT_AUTH_PASSWORD", "SYNAPSE_USER", "SYNAPSE_PASSWORD"} {
		t.Setenv(env, "")
	}

	m := tu.NewTree(t)
	for _, fn := range prepare {
		fn(m)
	}
	return tu.WriteFileRepo(t, m)
}

func run(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()
	root, _ := newRootCmd()
	return executeCommand(root, append([]string{"--repository", dsn}, args...)...)
}

func reopen(t *testing.T, dsn string) *repository.File {
	t.Helper()
	f, err := repository.OpenFile(strings.TrimPrefix(dsn, "file://"), repository.Options{})
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	return f
}

func TestRootCommand(t *testing.T) {
	root := NewRootCmd()
	if root.Use != "syt" {
		t.Errorf("root.Use = %q, want %q", root.Use, "syt")
	}

	cmdMap := make(map[string]bool)
	for _, c := range root.Commands() {
		cmdMap[c.Name()] = true
	}
	for _, name := range []string{"checkout", "checkin", "show", "config"} {
		if !cmdMap[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestCheckoutCheckin_RoundTrip(t *testing.T) {
	dsn := setupRepo(t)

	out, err := run(t, dsn, "checkout", tu.FolderA)
	if err != nil {
		t.Fatalf("checkout error = %v\n%s", err, out)
	}
	for _, want := range []string{"Checking out...", "Checking Parent Check-outs...", "Checking Child Check-outs...", "Check-out was successful"} {
		if !strings.Contains(out, want) {
			t.Errorf("checkout output missing %q:\n%s", want, out)
		}
	}

	a, err := reopen(t, dsn).GetEntity(context.Background(), tu.FolderA)
	if err != nil {
		t.Fatal(err)
	}
	if !a.IsLockedBy(tu.Alice.OwnerID) {
		t.Fatalf("A annotations = %v, want locked by alice", a.Annotations)
	}

	out, err = run(t, dsn, "checkin", tu.FolderA)
	if err != nil {
		t.Fatalf("checkin error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Check-in was successful") {
		t.Errorf("checkin output:\n%s", out)
	}

	a, _ = reopen(t, dsn).GetEntity(context.Background(), tu.FolderA)
	if a.IsLocked() {
		t.Error("A should be released")
	}
}

func TestCheckout_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"ancestor conflict", []string{"checkout", tu.FileF}, syterrors.ExitStateConflict},
		{"already checked out", []string{"checkout", tu.FolderA}, syterrors.ExitStateConflict},
		{"not owner", []string{"-u", "bob", "-p", tu.BobPassword, "checkin", tu.FolderA}, syterrors.ExitUnauthorized},
		{"force without admin", []string{"-u", "bob", "-p", tu.BobPassword, "checkout", "-f", tu.FolderA}, syterrors.ExitUnauthorized},
		{"bad password", []string{"-u", "alice", "-p", "wrong", "checkout", tu.FileG}, syterrors.ExitUnauthorized},
		{"unsupported kind", []string{"checkout", tu.TableT}, syterrors.ExitValidation},
		{"missing entity", []string{"checkout", "syn404"}, syterrors.ExitNotFound},
		{"too many args", []string{"checkout", tu.FolderA, "dir", "extra"}, syterrors.ExitUsage},
		{"unknown flag", []string{"checkout", "--bogus"}, syterrors.ExitUsage},
		{"unknown command", []string{"bogus"}, syterrors.ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := setupRepo(t, func(m *repository.Memory) { tu.Lock(t, m, tu.FolderA, tu.Alice) })
			out, err := run(t, dsn, tt.args...)
			if err == nil {
				t.Fatalf("expected an error, output:\n%s", out)
			}
			if got := exitCode(err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", err, got, tt.want)
			}
		})
	}
}

func TestFinish(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     int
		wantLog  string
		wantText string
	}{
		{
			name:     "conflict logged at debug",
			err:      syterrors.NewStateConflictError(syterrors.ConflictAncestor).WithEntity("syn2", "A").WithLocker("7", "bob"),
			want:     syterrors.ExitStateConflict,
			wantLog:  `"level":"DEBUG","msg":"command refused"`,
			wantText: `ERROR: parent "A" (syn2) is checked out by bob`,
		},
		{
			name:     "repository failure logged as error",
			err:      syterrors.NewRepositoryError("store lock", errors.New("connection reset")),
			want:     syterrors.ExitRepository,
			wantLog:  `"level":"ERROR","msg":"command failed"`,
			wantText: "ERROR: repository error: store lock: connection reset",
		},
		{
			name:     "unknown command",
			err:      errors.New(`unknown command "bogus" for "syt"`),
			want:     syterrors.ExitUsage,
			wantLog:  `"msg":"command refused"`,
			wantText: `ERROR: unknown command "bogus"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs, out bytes.Buffer
			a := &app{logger: logging.NewWriterLogger(&logs, "debug")}

			if got := a.finish(&out, tt.err); got != tt.want {
				t.Errorf("finish() = %d, want %d", got, tt.want)
			}
			if !strings.Contains(logs.String(), tt.wantLog) {
				t.Errorf("log = %s, want %s", logs.String(), tt.wantLog)
			}
			if !strings.Contains(out.String(), tt.wantText) {
				t.Errorf("output = %q, want %q", out.String(), tt.wantText)
			}
		})
	}

	if got := (&app{}).finish(new(bytes.Buffer), nil); got != syterrors.ExitOK {
		t.Errorf("finish(nil) = %d, want %d", got, syterrors.ExitOK)
	}
}

func TestCheckout_ForcePrintsWarnings(t *testing.T) {
	dsn := setupRepo(t, func(m *repository.Memory) { tu.Lock(t, m, tu.FolderA, tu.Bob) })

	out, err := run(t, dsn, "checkout", "--force", tu.FileF)
	if err != nil {
		t.Fatalf("checkout --force error = %v\n%s", err, out)
	}
	if !strings.Contains(out, `WARNING: parent "A" (syn2) is checked out by bob`) {
		t.Errorf("missing ancestor warning:\n%s", out)
	}
	if !strings.Contains(out, "Check-out was successful") {
		t.Errorf("missing success message:\n%s", out)
	}
}

func TestCheckout_SyncThenCheckinByPath(t *testing.T) {
	dsn := setupRepo(t)
	dir := filepath.Join(t.TempDir(), "work")

	out, err := run(t, dsn, "checkout", "--sync", tu.FolderA, dir)
	if err != nil {
		t.Fatalf("checkout --sync error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Checked out files:") || !strings.Contains(out, filepath.Join(dir, "B", "F")) {
		t.Errorf("missing synced file list:\n%s", out)
	}
	if id, err := os.ReadFile(filepath.Join(dir, ".syt")); err != nil || string(id) != tu.FolderA {
		t.Fatalf(".syt = %q, %v", id, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "G"), []byte("changed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, dsn, "checkin", "--sync", dir)
	if err != nil {
		t.Fatalf("checkin by path error = %v\n%s", err, out)
	}

	repo := reopen(t, dsn)
	data, err := repo.Download(context.Background(), tu.FileG)
	if err != nil || string(data) != "changed\n" {
		t.Errorf("G content = %q, %v", data, err)
	}
	a, _ := repo.GetEntity(context.Background(), tu.FolderA)
	if a.IsLocked() {
		t.Error("A should be released")
	}
}

func TestCheckin_MissingPointer(t *testing.T) {
	dsn := setupRepo(t)

	_, err := run(t, dsn, "checkin", t.TempDir())
	if got := exitCode(err); got != syterrors.ExitNotFound {
		t.Fatalf("exitCode(%v) = %d, want %d", err, got, syterrors.ExitNotFound)
	}
}

func TestShow_Empty(t *testing.T) {
	dsn := setupRepo(t)

	out, err := run(t, dsn, "show", tu.ProjectID)
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	if !strings.Contains(out, "Loading Check-outs...") || !strings.Contains(out, "No checked out entities found.") {
		t.Errorf("show output:\n%s", out)
	}
}

func TestShow_Listing(t *testing.T) {
	dsn := setupRepo(t, func(m *repository.Memory) {
		tu.Lock(t, m, tu.FolderA, tu.Bob)
		tu.Lock(t, m, tu.FileF, tu.Alice)
	})

	out, err := run(t, dsn, "show", tu.ProjectID)
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	for _, want := range []string{
		strings.Repeat("-", 80),
		"Folder: A (syn2)",
		"Checked out by: bob (7)",
		"File: F (syn5)",
		"Checked out by: alice (1)",
		"Checked out on: 0001-01-01T00:00:00Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, dsn, "show", "--name", "F*", tu.ProjectID)
	if err != nil {
		t.Fatalf("show --name error = %v", err)
	}
	if strings.Contains(out, "Folder: A") || !strings.Contains(out, "File: F (syn5)") {
		t.Errorf("show --name output:\n%s", out)
	}
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	dsn := setupRepo(t)

	out, err := run(t, dsn, "-p", "s3cret", "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out, "s3cret") {
		t.Errorf("config show leaked the password:\n%s", out)
	}
	for _, want := range []string{"repository:", dsn, "view_name: syt", "********"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestConfigFile(t *testing.T) {
	dsn := setupRepo(t)
	cfgFile := filepath.Join(t.TempDir(), "syt.yaml")
	body := "repository:\n  url: " + dsn + "\nprotocol:\n  view_name: locks\n"
	if err := os.WriteFile(cfgFile, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	root, a := newRootCmd()
	out, err := executeCommand(root, "--config", cfgFile, "config", "path")
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if !strings.Contains(out, "Active config: "+cfgFile) {
		t.Errorf("config path output:\n%s", out)
	}
	if a.cfg.Protocol.ViewName != "locks" || a.cfg.Repository.URL != dsn {
		t.Errorf("loaded config = %+v", a.cfg)
	}
}

func TestInvalidConfig(t *testing.T) {
	setupRepo(t)
	t.Setenv("SYT_OUTPUT_COLOR", "sometimes")

	root, _ := newRootCmd()
	_, err := executeCommand(root, "show", tu.ProjectID)
	if got := exitCode(err); got != syterrors.ExitValidation {
		t.Errorf("exitCode(%v) = %d, want %d", err, got, syterrors.ExitValidation)
	}
}

func TestPromptCredentials(t *testing.T) {
	origTerminal, origRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = origTerminal, origRead })

	tests := []struct {
		name     string
		url      string
		terminal bool
		username string
		wantUser string
		wantPass string
	}{
		{"prompts for both", "https://repo.example", true, "", "bob", "typed"},
		{"keeps flag username", "https://repo.example", true, "alice", "alice", "typed"},
		{"not a terminal", "https://repo.example", false, "", "", ""},
		{"local repository", "file:///tmp/repo.yaml", true, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isTerminal = func(int) bool { return tt.terminal }
			readPassword = func(int) ([]byte, error) { return []byte("typed"), nil }

			cfg := config.Default()
			cfg.Repository.URL = tt.url
			cfg.Auth.Username = tt.username
			a := &app{cfg: cfg, stdin: strings.NewReader("bob\n")}

			var prompt bytes.Buffer
			if err := a.promptCredentials(&prompt); err != nil {
				t.Fatalf("promptCredentials() error = %v", err)
			}
			if cfg.Auth.Username != tt.wantUser || cfg.Auth.Password != tt.wantPass {
				t.Errorf("credentials = (%q, %q), want (%q, %q)", cfg.Auth.Username, cfg.Auth.Password, tt.wantUser, tt.wantPass)
			}
		})
	}
}
