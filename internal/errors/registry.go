package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E199)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Config file not readable",
		Detail:   "The configuration file exists but could not be read.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Config file syntax error",
		Detail:   "The configuration file could not be parsed. TOML files use [section] tables and key = value pairs.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Durations are written as Go duration strings such as \"30s\", \"5m\" or \"1h\".",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Session secret missing",
		Detail:   "Session cookies are signed with HMAC-SHA256 and need a secret of at least 32 bytes.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid sweep interval",
		Detail:   "The expired-session sweep must run on a positive interval.",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Invalid log level",
		Detail:   "The log level must be one of debug, info, warn or error.",
	},
	"E106": {
		Category: CategoryConfig,
		Message:  "Invalid trusted proxy",
		Detail:   "Trusted proxies are IP addresses or CIDR ranges.",
	},
	"E107": {
		Category: CategoryConfig,
		Message:  "Unsupported config format",
		Detail:   "Configuration files must end in .toml or .json.",
	},
	"E108": {
		Category: CategoryConfig,
		Message:  "Invalid listen address",
		Detail:   "The server address must be host:port, for example \":8080\".",
	},
	"E109": {
		Category: CategoryConfig,
		Message:  "Invalid cookie policy",
		Detail:   "The session cookie attributes are inconsistent.",
	},

	// ============================================
	// CLI Errors (E200-E299)
	// ============================================

	"E200": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The HTTP server stopped with an error.",
	},
	"E201": {
		Category: CategoryCLI,
		Message:  "Port in use",
		Detail:   "Another process is listening on the configured address.",
	},
	"E202": {
		Category: CategoryCLI,
		Message:  "Shutdown timed out",
		Detail:   "In-flight requests did not finish before the shutdown deadline.",
	},
	"E203": {
		Category: CategoryCLI,
		Message:  "Command failed",
		Detail:   "The command could not run. Check its arguments with --help.",
	},

	// ============================================
	// Runtime Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryRuntime,
		Message:  "Scheduler lifecycle error",
		Detail:   "A scheduler method was called in a state that does not allow it.",
	},
}
