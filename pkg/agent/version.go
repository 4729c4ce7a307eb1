package agent

// Build metadata, overridden at link time:
//
//	-ldflags "-X github.com/clawster/clawster/pkg/agent.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
