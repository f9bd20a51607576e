// Package config provides configuration management for the Rover event service.
//
// Configuration is loaded from environment variables using the env package.
// Every value except the application token has a default suitable for
// development use.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
