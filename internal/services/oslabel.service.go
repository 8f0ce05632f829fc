package services

import (
	"context"
	"log"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// windows11Build is the first build number shipped as Windows 11
const windows11Build = 22000

// LabelResolver produces a human-readable OS label. Resolve never fails;
// implementations fall back to a generic label when the host cannot be queried.
type LabelResolver interface {
	Resolve(ctx context.Context) string
}

// NewLabelResolver picks the resolver for the given platform (runtime.GOOS values)
func NewLabelResolver(goos string) LabelResolver {
	if goos == "windows" {
		return &windowsLabelResolver{
			platform: platformName,
			kernel:   host.KernelVersionWithContext,
		}
	}
	return &unixLabelResolver{
		goos:   goos,
		kernel: host.KernelVersionWithContext,
	}
}

type windowsLabelResolver struct {
	platform func(ctx context.Context) (string, error)
	kernel   func(ctx context.Context) (string, error)
}

// Resolve prefers the registry product name and falls back to the build number
func (w *windowsLabelResolver) Resolve(ctx context.Context) string {
	build, hasBuild := 0, false
	if version, err := w.kernel(ctx); err == nil {
		build, hasBuild = parseWindowsBuild(version)
	} else {
		log.Printf("Warning: Could not read Windows build number: %v", err)
	}

	product, err := w.platform(ctx)
	if err != nil {
		log.Printf("Warning: Could not read Windows product name: %v", err)
		product = ""
	}
	product = strings.TrimSpace(product)

	if product != "" {
		// The registry keeps reporting "Windows 10" on Windows 11 hosts
		if hasBuild && build >= windows11Build && strings.Contains(product, "Windows 10") {
			product = strings.Replace(product, "Windows 10", "Windows 11", 1)
		}
		return product
	}

	if hasBuild {
		return windowsLabelForBuild(build)
	}
	return genericLabel("windows")
}

type unixLabelResolver struct {
	goos   string
	kernel func(ctx context.Context) (string, error)
}

// Resolve returns "<system> <release>", e.g. "Linux 6.1.0-18-amd64"
func (u *unixLabelResolver) Resolve(ctx context.Context) string {
	release, err := u.kernel(ctx)
	if err != nil {
		log.Printf("Warning: Could not read kernel release: %v", err)
		return genericLabel(u.goos)
	}

	release = strings.TrimSpace(release)
	if release == "" {
		return genericLabel(u.goos)
	}
	return systemName(u.goos) + " " + release
}

func platformName(ctx context.Context) (string, error) {
	platform, _, _, err := host.PlatformInformationWithContext(ctx)
	return platform, err
}

// windowsLabelForBuild maps a build number onto a marketing name
func windowsLabelForBuild(build int) string {
	if build >= windows11Build {
		return "Windows 11"
	}
	return "Windows 10"
}

// parseWindowsBuild extracts the build number from version strings such as
// "10.0.22631.2861 Build 22631.2861" or "10.0.19045"
func parseWindowsBuild(version string) (int, bool) {
	version = strings.TrimSpace(version)

	if idx := strings.Index(version, "Build "); idx >= 0 {
		rest := version[idx+len("Build "):]
		if build, ok := leadingInt(rest); ok {
			return build, true
		}
	}

	words := strings.Fields(version)
	if len(words) == 0 {
		return 0, false
	}
	fields := strings.Split(words[0], ".")
	if len(fields) >= 3 {
		if build, err := strconv.Atoi(fields[2]); err == nil {
			return build, true
		}
	}
	return 0, false
}

func leadingInt(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// systemName mirrors the uname-style system names for a GOOS value
func systemName(goos string) string {
	switch goos {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	case "freebsd":
		return "FreeBSD"
	case "openbsd":
		return "OpenBSD"
	case "netbsd":
		return "NetBSD"
	case "dragonfly":
		return "DragonFly"
	case "solaris", "illumos":
		return "SunOS"
	case "":
		return "Unknown"
	default:
		return strings.ToUpper(goos[:1]) + goos[1:]
	}
}

func genericLabel(goos string) string {
	return systemName(goos) + " (" + runtime.GOARCH + ")"
}
