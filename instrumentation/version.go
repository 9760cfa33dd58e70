package instrumentation

// Version information for the GenAI instrumentation
const (
	// ScopeName is the instrumentation scope of every span, metric and log
	// record emitted by this package.
	ScopeName = "github.com/itsneelabh/gomind-genai/instrumentation"

	// Version is the instrumentation scope version
	Version = "0.1.0"
)
