// SPDX-License-Identifier: Apache-2.0

package runtimecfg

import (
	"fmt"
	"strings"

	"github.com/kusari-oss/nodeprep/internal/core/models"
)

// Backend is the WebAssembly engine compiled into the OCI runtime
type Backend string

const (
	Wasmtime Backend = "wasmtime"
	Wasmer   Backend = "wasmer"
	WasmEdge Backend = "wasmedge"
	WAMR     Backend = "wamr"
)

// Backends is the closed set of supported engines
var Backends = []Backend{Wasmtime, Wasmer, WasmEdge, WAMR}

// Valid reports whether b is one of the supported engines
func (b Backend) Valid() bool {
	for _, known := range Backends {
		if b == known {
			return true
		}
	}
	return false
}

func (b Backend) String() string {
	return string(b)
}

// BuildFlag returns the configure flag that compiles b into the runtime
func BuildFlag(b Backend) string {
	return "--with-" + string(b)
}

// ParseBackend converts a variable value into exactly one backend.
// Lists and comma separated values are rejected.
func ParseBackend(value interface{}) (Backend, error) {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case Backend:
		raw = string(v)
	case nil:
		return "", fmt.Errorf("%w: runtime_backend is not set", models.ErrConfigurationMismatch)
	default:
		return "", fmt.Errorf("%w: runtime_backend must name exactly one backend, got %v", models.ErrConfigurationMismatch, value)
	}

	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.ContainsAny(raw, ", ") {
		return "", fmt.Errorf("%w: runtime_backend must name exactly one backend, got %q", models.ErrConfigurationMismatch, raw)
	}

	backend := Backend(raw)
	if !backend.Valid() {
		return "", fmt.Errorf("%w: unknown runtime backend %q (supported: %v)", models.ErrConfigurationMismatch, raw, Backends)
	}
	return backend, nil
}
