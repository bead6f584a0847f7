package stdlib

import (
	"strconv"
	"strings"

	"github.com/jokane/mash/internal/script"
)

// requireVersions(component=version, ...) fails unless every named
// component is available at or above the requested version.
func (h *Host) requireVersions(c *script.Call) (script.Value, error) {
	if len(c.Args) > 0 {
		return nil, c.Errorf("require_versions: use named arguments, e.g. mash=\"3.0\"")
	}
	for component, v := range c.Named {
		want, ok := v.(string)
		if !ok {
			return nil, c.Errorf("require_versions: %s: expected a version string, got %s",
				component, script.TypeName(v))
		}
		have, ok := h.Versions[component]
		if !ok {
			return nil, c.Errorf("require_versions: unknown component %q", component)
		}
		if compareVersions(have, want) < 0 {
			return nil, c.Errorf(
				"require_versions: %s %s required, but only %s is available",
				component, want, have)
		}
	}
	return nil, nil
}

// compareVersions compares dotted-integer versions. Missing segments count
// as zero; non-numeric segments compare as strings.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := "0", "0"
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		ai, aerr := strconv.Atoi(av)
		bi, berr := strconv.Atoi(bv)
		if aerr == nil && berr == nil {
			if ai != bi {
				if ai < bi {
					return -1
				}
				return 1
			}
			continue
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
