package version

// Version is the fetchpub release version. Overridden at build time via
// -ldflags "-X github.com/mlwx/fetchpub/internal/version.Version=...".
var Version = "0.3.0-dev"
