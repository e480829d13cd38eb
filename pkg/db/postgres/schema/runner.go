package schema

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	xe "github.com/opst/knitmeta/pkg/errors"
)

// Runner delegates schema operations to the schema upgrader command, as a subprocess.
//
// The command should print the current version with "--current",
// and upgrade the database without it.
type Runner struct {
	// command line of the upgrader, like []string{"schema_upgrader", "--schema-repo", "/schema"}.
	Command []string

	// extra environment variables (KEY=VALUE) for the upgrader.
	Env []string
}

func (r Runner) run(ctx context.Context, extra ...string) (string, error) {
	if len(r.Command) == 0 {
		return "", xe.New("schema upgrader command is not configured")
	}
	args := append(append([]string{}, r.Command[1:]...), extra...)
	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	cmd.Env = append(os.Environ(), r.Env...)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	if err := cmd.Run(); err != nil {
		return "", xe.WrapWithNote(
			strings.TrimSpace(stderr.String()),
			fmt.Errorf("schema upgrader %v: %w", r.Command, err),
		)
	}
	return stdout.String(), nil
}

// Version asks the upgrader the current version of the database schema.
func (r Runner) Version(ctx context.Context) (int, error) {
	out, err := r.run(ctx, "--current")
	if err != nil {
		return -1, err
	}
	lines := strings.Fields(out)
	if len(lines) == 0 {
		return -1, xe.New("schema upgrader printed no version")
	}
	v, err := strconv.Atoi(lines[len(lines)-1])
	if err != nil {
		return -1, xe.WrapWithNote("unexpected output of schema upgrader", err)
	}
	return v, nil
}

// Upgrade lets the upgrader apply pending schema versions.
func (r Runner) Upgrade(ctx context.Context) error {
	_, err := r.run(ctx)
	return err
}
