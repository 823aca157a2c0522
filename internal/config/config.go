// Package config holds the typed engine settings: the option registry the
// UCI front end writes and the core consumes. Defaults can be overridden
// by an optional TOML file, then per-option via setoption.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrOption is wrapped by every rejected setting; the prior value is
// always preserved on rejection.
var ErrOption = errors.New("invalid option")

// Settings is the full option registry.
type Settings struct {
	Hash         int  `toml:"hash"`          // transposition table size in MB
	Threads      int  `toml:"threads"`       // worker count
	MultiPV      int  `toml:"multi_pv"`      // principal variations to report
	MoveOverhead int  `toml:"move_overhead"` // per-move latency reserve in ms
	Ponder       bool `toml:"ponder"`
	BindThreads  bool `toml:"bind_threads"` // pin workers to CPUs

	UseNNUE       bool   `toml:"use_nnue"`
	EvalFile      string `toml:"eval_file"`
	EvalFileSmall string `toml:"eval_file_small"`

	BookFile string `toml:"book_file"`

	SyzygyPath       string `toml:"syzygy_path"`
	SyzygyProbeDepth int    `toml:"syzygy_probe_depth"`
	SyzygyProbeLimit int    `toml:"syzygy_probe_limit"`

	StateDir string `toml:"state_dir"` // badger store for caches and snapshots
}

// Default returns the settings an unconfigured engine starts with.
func Default() Settings {
	return Settings{
		Hash:             64,
		Threads:          0, // 0 = all cores
		MultiPV:          1,
		MoveOverhead:     30,
		SyzygyProbeDepth: 1,
		SyzygyProbeLimit: 7,
	}
}

// Load reads a TOML settings file over the defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Default(), fmt.Errorf("%w: %s: %v", ErrOption, path, err)
	}
	if err := s.validate(); err != nil {
		return Default(), err
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.Hash < 1 || s.Hash > 33554432 {
		return fmt.Errorf("%w: Hash %d out of range [1, 33554432]", ErrOption, s.Hash)
	}
	if s.Threads < 0 || s.Threads > 1024 {
		return fmt.Errorf("%w: Threads %d out of range [0, 1024]", ErrOption, s.Threads)
	}
	if s.MultiPV < 1 || s.MultiPV > 256 {
		return fmt.Errorf("%w: MultiPV %d out of range [1, 256]", ErrOption, s.MultiPV)
	}
	if s.MoveOverhead < 0 || s.MoveOverhead > 5000 {
		return fmt.Errorf("%w: MoveOverhead %d out of range [0, 5000]", ErrOption, s.MoveOverhead)
	}
	if s.SyzygyProbeDepth < 1 || s.SyzygyProbeDepth > 100 {
		return fmt.Errorf("%w: SyzygyProbeDepth %d out of range [1, 100]", ErrOption, s.SyzygyProbeDepth)
	}
	if s.SyzygyProbeLimit < 0 || s.SyzygyProbeLimit > 7 {
		return fmt.Errorf("%w: SyzygyProbeLimit %d out of range [0, 7]", ErrOption, s.SyzygyProbeLimit)
	}
	return nil
}

// MoveOverheadDuration returns the overhead as a duration.
func (s *Settings) MoveOverheadDuration() time.Duration {
	return time.Duration(s.MoveOverhead) * time.Millisecond
}

// Set applies one named option value, UCI style. Unknown names and
// malformed values return ErrOption and leave the settings untouched.
func (s *Settings) Set(name, value string) error {
	next := *s

	switch strings.ToLower(name) {
	case "hash":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: Hash %q", ErrOption, value)
		}
		next.Hash = n
	case "threads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: Threads %q", ErrOption, value)
		}
		next.Threads = n
	case "multipv":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: MultiPV %q", ErrOption, value)
		}
		next.MultiPV = n
	case "move overhead", "moveoverhead":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: MoveOverhead %q", ErrOption, value)
		}
		next.MoveOverhead = n
	case "ponder":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		next.Ponder = b
	case "bindthreads", "bind threads":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		next.BindThreads = b
	case "usennue", "use nnue":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		next.UseNNUE = b
	case "evalfile":
		next.EvalFile = value
	case "evalfilesmall":
		next.EvalFileSmall = value
	case "bookfile":
		next.BookFile = value
	case "syzygypath":
		next.SyzygyPath = value
	case "syzygyprobedepth":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: SyzygyProbeDepth %q", ErrOption, value)
		}
		next.SyzygyProbeDepth = n
	case "syzygyprobelimit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: SyzygyProbeLimit %q", ErrOption, value)
		}
		next.SyzygyProbeLimit = n
	case "statedir":
		next.StateDir = value
	default:
		return fmt.Errorf("%w: unknown option %q", ErrOption, name)
	}

	if err := next.validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("%w: boolean %q", ErrOption, value)
}
