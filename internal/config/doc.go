// Package config loads beryllium server configuration.
//
// Configuration is read from beryllium.toml, or beryllium.json when no TOML
// file exists, in the working directory. Missing values take defaults and
// BERYLLIUM_ADDR, BERYLLIUM_SECRET and BERYLLIUM_LOG_LEVEL override the file.
//
// # Configuration File Structure
//
//	[server]
//	addr = ":8080"
//	read_header_timeout = "10s"
//	shutdown_timeout = "15s"
//	trusted_proxies = ["10.0.0.0/8"]
//
//	[session]
//	ttl = "1h"
//	sweep_interval = "1m"
//	secret = "..."
//	cookie_name = "beryllium_session"
//	secure_cookies = true
//
//	[log]
//	level = "info"
//	format = "json"
//
//	[metrics]
//	enabled = true
//	namespace = "beryllium"
//	path = "/metrics"
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
