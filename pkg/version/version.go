package version

// Version is the current jw version. It is a var so releases can set it:
//
//	go build -ldflags "-X github.com/vanderheijden86/jobwork/pkg/version.Version=v0.2.0" ./cmd/jw
var Version = "v0.1.0"
