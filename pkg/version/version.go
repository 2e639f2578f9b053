package version

// GitCommit is set at build time:
//
//	go build -ldflags "-X github.com/testground/failpoint/pkg/version.GitCommit=$(git rev-parse HEAD)"
var GitCommit string
