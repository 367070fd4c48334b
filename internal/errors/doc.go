// Package errors provides coded, actionable errors for the beryllium CLI.
//
// Each code maps to a registered template with a short message and a
// longer explanation. Codes are grouped by range:
//   - E1xx: configuration loading and validation
//   - E2xx: command execution
//   - E3xx: runtime failures surfaced to the CLI
//
// # Usage
//
//	err := errors.New("E101").
//	    WithLocation("beryllium.toml", 4, 9).
//	    WithSuggestion("Quote string values: secret = \"...\"").
//	    Wrap(parseErr)
//
//	errors.Print(os.Stderr, err)
//	// ERROR E101: Config file syntax error
//	//
//	//   beryllium.toml:4:9
//	//
//	//        2 │ [session]
//	//        3 │ ttl = "1h"
//	//   →    4 │ secret = abc
//	//        5 │
//	//
//	//   The configuration file could not be parsed. ...
//	//
//	//   Hint: Quote string values: secret = "..."
package errors
