// Package audit writes the per-run dump files: every discovery and
// classification stage as JSON plus a parallel text file of route
// keys, for diffing runs and reviewing what was wrapped and why not.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Swingft/dyncall/internal/discover"
)

// DumpDirName is the default dump directory created under the
// rewrite target root.
const DumpDirName = "_dyn_obf_scan_dumps"

// Stages holds the function lists produced by one run, in pipeline
// order.
type Stages struct {
	All      []discover.FunctionRecord
	Clean    []discover.FunctionRecord
	Excluded []discover.FunctionRecord
	Safe     []discover.FunctionRecord
	Risky    []discover.FunctionRecord
}

// Options selects where the dumps land. Dir provides the defaults;
// any non-empty override replaces the corresponding default path.
type Options struct {
	Dir string

	AllJSON      string
	AllTxt       string
	CleanJSON    string
	CleanTxt     string
	ExcludedJSON string
	ExcludedTxt  string
	SafeJSON     string
	SafeTxt      string
	RiskyJSON    string
	RiskyTxt     string
}

func (o Options) resolve(override, name string) string {
	if override != "" {
		return override
	}
	return filepath.Join(o.Dir, name)
}

// Write emits all ten dump files.
func Write(opts Options, st Stages) error {
	pairs := []struct {
		jsonPath string
		txtPath  string
		funcs    []discover.FunctionRecord
	}{
		{opts.resolve(opts.AllJSON, "all_funcs.json"), opts.resolve(opts.AllTxt, "all_funcs.txt"), st.All},
		{opts.resolve(opts.CleanJSON, "clean_funcs.json"), opts.resolve(opts.CleanTxt, "clean_funcs.txt"), st.Clean},
		{opts.resolve(opts.ExcludedJSON, "excluded_funcs.json"), opts.resolve(opts.ExcludedTxt, "excluded_funcs.txt"), st.Excluded},
		{opts.resolve(opts.SafeJSON, "safe_funcs.json"), opts.resolve(opts.SafeTxt, "safe_funcs.txt"), st.Safe},
		{opts.resolve(opts.RiskyJSON, "risky_funcs.json"), opts.resolve(opts.RiskyTxt, "risky_funcs.txt"), st.Risky},
	}
	for _, p := range pairs {
		if err := writeJSON(p.jsonPath, p.funcs); err != nil {
			return err
		}
		if err := writeText(p.txtPath, routeKeys(p.funcs)); err != nil {
			return err
		}
	}
	return nil
}

func routeKeys(funcs []discover.FunctionRecord) []string {
	keys := make([]string, len(funcs))
	for i := range funcs {
		keys[i] = funcs[i].RouteKey
	}
	return keys
}

func writeJSON(path string, funcs []discover.FunctionRecord) error {
	if funcs == nil {
		funcs = []discover.FunctionRecord{}
	}
	data, err := json.MarshalIndent(funcs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return writeFile(path, append(data, '\n'))
}

func writeText(path string, lines []string) error {
	out := strings.Join(lines, "\n")
	if len(lines) > 0 {
		out += "\n"
	}
	return writeFile(path, []byte(out))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dump dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
