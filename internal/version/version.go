// internal/version/version.go
package version

// Version is set at link time:
//
//	go build -ldflags "-X fluprep/internal/version.Version=1.2.3" ./cmd/flu-prepare
var Version = "dev"
