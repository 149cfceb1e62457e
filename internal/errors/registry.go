package errors

import "sort"

// Template defines a registered error code.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

var registry = map[string]Template{
	// Configuration (W100-W199)
	"W100": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Suggestion: "Create wolfnet.json or pass --config with the right path",
	},
	"W101": {
		Category:   CategoryConfig,
		Message:    "Config file is not valid JSON",
		Suggestion: "Check wolfnet.json for trailing commas and unquoted keys",
	},
	"W102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "A setting from the config file, the environment or a flag is out of range.",
	},

	// Network (W200-W299)
	"W200": {
		Category:   CategoryNetwork,
		Message:    "Cannot bind game socket",
		Detail:     "The UDP address is in use or not available on this host.",
		Suggestion: "Pick another port with --listen",
	},
	"W201": {
		Category:   CategoryNetwork,
		Message:    "HTTP server failed",
		Suggestion: "Pick another address with --http or disable it with --http=\"\"",
	},

	// Demos (W300-W399)
	"W300": {
		Category: CategoryDemo,
		Message:  "Cannot open demo",
	},
	"W301": {
		Category: CategoryDemo,
		Message:  "Demo is corrupt",
		Detail:   "A frame could not be read or decoded. The file may be truncated or was recorded by another protocol version.",
	},
	"W302": {
		Category:   CategoryDemo,
		Message:    "Cannot archive demo",
		Suggestion: "Check the demo directory permissions or the S3 bucket settings",
	},

	// CLI (W400-W499)
	"W400": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns every registered code, sorted.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
