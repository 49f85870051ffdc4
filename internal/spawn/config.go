// Package spawn starts external programs for the shell.
//
// Go cannot run code between fork and exec, so the child side of a launch
// is the shell's own binary re-executed as a helper. The helper receives a
// Config through the environment, applies its redirections and signal
// dispositions to itself and then replaces its image with the requested
// program. The pid returned by Start is therefore the program's pid.
package spawn

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
)

// EnvKey carries the encoded Config from the shell to the helper.
const EnvKey = "SMALLSH_SPAWN"

// DevNull is the sink used for background commands without explicit
// redirection.
const DevNull = "/dev/null"

var logger = log.New(io.Discard, "spawn: ", log.LstdFlags)

// SetLogOutput enables debug logging to w.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Disposition is what the child does on receipt of a signal.
type Disposition int

const (
	Default Disposition = iota
	Ignore
)

var dispositionNames = [...]string{
	"default",
	"ignore",
}

// fmt.Stringer
func (d Disposition) String() string {
	if int(d) < len(dispositionNames) {
		return dispositionNames[d]
	}
	return fmt.Sprintf("Disposition(%d)", int(d))
}

// Config is everything the child applies before replacing its image.
// Empty Stdin/Stdout leave the inherited descriptor untouched.
type Config struct {
	Name      string      `json:"name"`
	Argv      []string    `json:"argv"`
	Stdin     string      `json:"stdin,omitempty"`
	Stdout    string      `json:"stdout,omitempty"`
	Interrupt Disposition `json:"interrupt"`
	Stop      Disposition `json:"stop"`
}

func (c *Config) encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decode(raw string) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal([]byte(raw), cfg); err != nil {
		return nil, fmt.Errorf("decoding spawn config: %w", err)
	}
	if cfg.Name == "" || len(cfg.Argv) == 0 {
		return nil, fmt.Errorf("decoding spawn config: empty command")
	}
	return cfg, nil
}

// IsChild reports whether this process was started as a spawn helper.
func IsChild() bool {
	_, ok := os.LookupEnv(EnvKey)
	return ok
}
