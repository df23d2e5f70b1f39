package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/genai"
)

// safeEnvVars is the whitelist of environment variables passed to commands,
// so provider API keys never reach model-chosen programs.
var safeEnvVars = []string{
	"PATH", "HOME", "USER", "SHELL", "TERM", "LANG", "LC_ALL", "LC_CTYPE",
	"TMPDIR", "TMP", "TEMP",
	"GOPATH", "GOROOT", "GOPROXY", "GOFLAGS", "GOCACHE", "GOMODCACHE",
	"NODE_PATH", "NPM_CONFIG_PREFIX",
	"PYTHONPATH", "VIRTUAL_ENV",
	"CARGO_HOME", "RUSTUP_HOME",
}

var blockedSubstrings = []string{
	":(){:|:&};:",
	":(){ :|:& };:",
	"rm -rf ~",
	"rm -rf $HOME",
	"rm -rf ${HOME}",
	"mkfs.",
	"mkfs ",
	"> /dev/sda",
	"> /dev/nvme",
	"chmod -R 777 /",
	"chown -R root /",
	"/etc/shadow",
	".ssh/id_rsa",
	".ssh/id_ed25519",
	".aws/credentials",
	"grub-install",
}

var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`:\s*\(\s*\)\s*\{.*\|.*&`),
	regexp.MustCompile(`rm\s+(-[rRf]+\s+)+/(\*|\s|$)`),
	regexp.MustCompile(`rm\s+(-[rRf]+\s+)+--no-preserve-root`),
	regexp.MustCompile(`dd\s+.*of=/dev/([snhv]d|nvme)`),
	regexp.MustCompile(`(?i)(wget|curl)\s+[^|]*\|\s*(sudo\s+)?(ba)?sh`),
	regexp.MustCompile(`\b(shutdown|reboot|halt|poweroff)\b`),
}

// blockedReason returns why a command is refused, or "".
func blockedReason(command string) string {
	normalized := strings.Join(strings.Fields(command), " ")
	for _, s := range blockedSubstrings {
		if strings.Contains(normalized, s) {
			return fmt.Sprintf("command contains blocked pattern %q", s)
		}
	}
	for _, re := range blockedPatterns {
		if re.MatchString(normalized) {
			return "command matches a blocked pattern"
		}
	}
	return ""
}

// RunCommandArgs are the arguments of run_command.
type RunCommandArgs struct {
	Command string
	Cwd     string
}

func (RunCommandArgs) ToolName() string { return "run_command" }

// RunCommandTool runs a shell command in the workspace.
type RunCommandTool struct {
	env *Env
}

func (t *RunCommandTool) Name() string { return "run_command" }

func (t *RunCommandTool) Description() string {
	return "Run a shell command in the workspace and return its output. Commands are killed after a timeout; output is truncated."
}

func (t *RunCommandTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"command": {
					Type:        genai.TypeString,
					Description: "The shell command to run",
				},
				"cwd": {
					Type:        genai.TypeString,
					Description: "Working directory relative to the workspace root (default root)",
				},
			},
			Required: []string{"command"},
		},
	}
}

func (t *RunCommandTool) Decode(raw map[string]any) (Args, error) {
	command, err := RequireString(raw, "command", "cmd")
	if err != nil {
		return nil, err
	}
	cwd, _, err := GetString(raw, "cwd", "working_directory")
	if err != nil {
		return nil, err
	}
	return RunCommandArgs{Command: command, Cwd: cwd}, nil
}

func (t *RunCommandTool) Execute(ctx context.Context, a Args) Result {
	args := a.(RunCommandArgs)

	if reason := blockedReason(args.Command); reason != "" {
		return NewErrorResult("Command blocked: " + reason)
	}

	dir := t.env.Workspace.Root()
	if args.Cwd != "" {
		resolved, err := t.env.Workspace.Resolve(args.Cwd)
		if err != nil {
			return NewErrorResult(err.Error())
		}
		if info, err := os.Stat(resolved); err != nil || !info.IsDir() {
			return NewErrorResult("Directory not found: " + args.Cwd)
		}
		dir = resolved
	}

	timeout := t.env.Limits.CommandTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, shell(), "-c", args.Command)
	cmd.Dir = dir
	cmd.Env = commandEnv()
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := capOutput(stdout.String(), t.env.Limits.StdoutLimit)
	errOut := capOutput(stderr.String(), t.env.Limits.StderrLimit)

	if runCtx.Err() == context.DeadlineExceeded {
		return NewErrorResult(fmt.Sprintf("Command timed out after %s%s", timeout, formatStreams(out, errOut)))
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		return NewErrorResult(fmt.Sprintf("Command exited with code %d%s", exitErr.ExitCode(), formatStreams(out, errOut)))
	case err != nil:
		return NewErrorResult(fmt.Sprintf("running command: %v", err))
	}

	if out == "" && errOut == "" {
		return NewSuccessResult("Success: command completed with no output")
	}
	if errOut == "" {
		return NewSuccessResult(out)
	}
	return NewSuccessResult(strings.TrimPrefix(formatStreams(out, errOut), "\n"))
}

func formatStreams(stdout, stderr string) string {
	var b strings.Builder
	if stdout != "" {
		b.WriteString("\n[stdout]\n")
		b.WriteString(stdout)
	}
	if stderr != "" {
		b.WriteString("\n[stderr]\n")
		b.WriteString(stderr)
	}
	return b.String()
}

// capOutput truncates s to limit bytes on a rune boundary.
func capOutput(s string, limit int) string {
	s = strings.TrimRight(s, "\n")
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("\n... (truncated, %d bytes total)", len(s))
}

func shell() string {
	if path, err := exec.LookPath("bash"); err == nil {
		return path
	}
	return "sh"
}

func commandEnv() []string {
	env := make([]string, 0, len(safeEnvVars))
	for _, key := range safeEnvVars {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}
	return env
}
