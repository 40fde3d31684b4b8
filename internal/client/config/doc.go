// Package config loads runtime configuration for the DuoMatch terminal
// client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. DUOMATCH_* environment variables.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-f string   local session database file
//	-i int      online status check interval (seconds)
//	-log string log level
//
// # JSON schema
//
// Intervals use timex.Duration, so they can be strings like "3s" or integer
// nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "session_db_path": "duomatch-session.db",
//	  "online_check_interval": "3s",
//	  "log_level": "warn"
//	}
package config
