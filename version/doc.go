// Package version reports the build identity of the chanflow binary.
//
// Values are injected at link time and fall back to the VCS stamp Go embeds:
//
//	go build -ldflags "-X github.com/kbukum/chanflow/version.Version=1.2.0" ./cmd/chanflow
package version
