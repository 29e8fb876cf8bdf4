package codec

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/fatturatools/modello"
)

// errPrefix marks editor-feedback lines injected after a failed re-parse.
// Lines carrying it are stripped before the buffer is decoded again.
const errPrefix = "# ERROR: "

// Editor round-trips a Model through an external text editor: the document is
// serialized with a text codec, handed to the editor, and re-parsed when the
// editor exits. A parse failure does not abort the session; the buffer is
// reopened with the failure reported on marker lines at the top so the user
// can fix the document in place.
type Editor struct {
	Codec Codec
	// Command overrides the editor invocation. When empty the $EDITOR
	// environment variable is used, falling back to vi.
	Command []string
	Logger  hclog.Logger
}

// NewEditor builds an editing session over a text codec.
func NewEditor(c Codec) *Editor {
	return &Editor{Codec: c, Logger: hclog.NewNullLogger()}
}

// Edit serializes m, opens the editor on it and re-parses the result once the
// editor exits cleanly. It returns (nil, nil) when the user leaves the buffer
// untouched. Non-fatal load advisories from the final parse are returned
// alongside the model.
func (e *Editor) Edit(m *modello.Model) (*modello.Model, modello.Issues, error) {
	if e.Codec.Binary() {
		return nil, nil, fmt.Errorf("codec: cannot edit a binary representation")
	}

	var initial bytes.Buffer
	if err := e.Codec.Write(m, &initial); err != nil {
		return nil, nil, err
	}

	ext := "txt"
	if exts := e.Codec.Extensions(); len(exts) > 0 {
		ext = exts[0]
	}
	tmp, err := os.CreateTemp("", "modello-edit-*."+ext)
	if err != nil {
		return nil, nil, err
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.Write(initial.Bytes()); err != nil {
		tmp.Close()
		return nil, nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, nil, err
	}

	current := initial.Bytes()
	for {
		if err := e.runEditor(path); err != nil {
			return nil, nil, err
		}
		edited, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		edited = stripErrorLines(edited)
		if bytes.Equal(edited, initial.Bytes()) {
			return nil, nil, nil
		}
		current = edited

		loaded, issues, err := e.Codec.Load(bytes.NewReader(current))
		if err == nil {
			return loaded, issues, nil
		}
		e.logger().Debug("edited document failed to parse, reopening", "error", err)
		if werr := writeWithError(path, current, err); werr != nil {
			return nil, nil, werr
		}
	}
}

func (e *Editor) runEditor(path string) error {
	argv := e.Command
	if len(argv) == 0 {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		argv = strings.Fields(editor)
	}
	cmd := exec.Command(argv[0], append(argv[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("codec: editor %s: %w", argv[0], err)
	}
	return nil
}

func (e *Editor) logger() hclog.Logger {
	if e.Logger == nil {
		return hclog.NewNullLogger()
	}
	return e.Logger
}

// writeWithError rewrites the buffer with the parse failure on marker lines
// at the top, one line per reported issue.
func writeWithError(path string, body []byte, err error) error {
	var head strings.Builder
	if issues, ok := modello.AsIssues(err); ok {
		for _, issue := range issues {
			head.WriteString(errPrefix + issue.String() + "\n")
		}
	} else {
		head.WriteString(errPrefix + err.Error() + "\n")
	}
	out := append([]byte(head.String()), body...)
	return os.WriteFile(path, out, 0o600)
}

func stripErrorLines(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	kept := lines[:0]
	for _, line := range lines {
		if bytes.HasPrefix(line, []byte(errPrefix)) {
			continue
		}
		kept = append(kept, line)
	}
	return bytes.Join(kept, []byte("\n"))
}
