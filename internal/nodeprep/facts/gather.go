// SPDX-License-Identifier: Apache-2.0

package facts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Gatherer collects facts from a target
type Gatherer interface {
	Gather(ctx context.Context, root string) (map[string]interface{}, error)
}

// LocalGatherer reads facts from the filesystem under a target root
type LocalGatherer struct{}

// NewLocalGatherer creates a gatherer for mounted or local targets
func NewLocalGatherer() *LocalGatherer {
	return &LocalGatherer{}
}

// Gather reads <root>/etc/os-release and, when present, <root>/proc/meminfo
func (g *LocalGatherer) Gather(ctx context.Context, root string) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if root == "" {
		root = "/"
	}

	result := map[string]interface{}{
		Arch: runtime.GOARCH,
	}

	// A node root that is not a running system has no procfs; its memory
	// facts come from the inventory instead
	mem, err := readMeminfo(filepath.Join(root, "proc", "meminfo"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for k, v := range mem {
		result[k] = v
	}

	release, err := readOSRelease(filepath.Join(root, "etc", "os-release"))
	if err != nil {
		return nil, err
	}
	id := release["ID"]
	family := osFamily(id, release["ID_LIKE"])
	result[OSID] = id
	result[OSVersion] = release["VERSION_ID"]
	result[OSFamily] = family
	result[PkgMgr] = packageManager(family)

	return result, nil
}

func readMeminfo(path string) (map[string]interface{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading meminfo: %w", err)
	}
	defer file.Close()

	result := map[string]interface{}{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}

		var name string
		switch key {
		case "SwapTotal":
			name = SwapTotalKB
		case "MemTotal":
			name = MemTotalKB
		default:
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		kb, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q in meminfo", key, fields[0])
		}
		result[name] = kb
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading meminfo: %w", err)
	}

	return result, nil
}

func readOSRelease(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading os-release: %w", err)
	}

	result := map[string]string{}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		result[key] = strings.Trim(value, `"'`)
	}
	return result, nil
}

// osFamily maps an os-release ID and ID_LIKE to a distribution family
func osFamily(id, idLike string) string {
	candidates := append([]string{id}, strings.Fields(idLike)...)
	for _, c := range candidates {
		switch c {
		case "debian", "ubuntu":
			return "debian"
		case "rhel", "fedora", "centos", "rocky", "almalinux":
			return "rhel"
		case "alpine":
			return "alpine"
		case "arch":
			return "arch"
		}
	}
	return id
}

func packageManager(family string) string {
	switch family {
	case "debian":
		return "apt"
	case "rhel":
		return "dnf"
	case "alpine":
		return "apk"
	case "arch":
		return "pacman"
	default:
		return "unknown"
	}
}

// StaticGatherer returns a fixed fact map
type StaticGatherer struct {
	Facts map[string]interface{}
}

// Gather returns a copy of the static facts
func (g *StaticGatherer) Gather(ctx context.Context, root string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(g.Facts))
	for k, v := range g.Facts {
		out[k] = v
	}
	return out, nil
}

// Collect gathers facts, overlays static ones and checks the required set
func Collect(ctx context.Context, gatherer Gatherer, root string, static map[string]interface{}) (*Set, error) {
	gathered, err := gatherer.Gather(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("error gathering facts: %w", err)
	}

	set := NewSet(gathered)
	set.Merge(static)

	if err := set.Require(Required...); err != nil {
		return nil, fmt.Errorf("%w (set them under facts for the node in the inventory)", err)
	}
	return set, nil
}
