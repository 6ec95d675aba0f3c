// Package env holds the small set of process-wide globals the rest of
// the binary reads instead of threading configuration through every call.
package env

import "github.com/thatsimonsguy/irrigation-controller/internal/config"

var Cfg *config.Config
