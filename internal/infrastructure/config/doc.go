// Package config loads the Givehub Core configuration.
//
// Values come from three layers, later ones winning: built-in defaults,
// the YAML file (configs/config.yaml unless GIVEHUB_CONFIG says otherwise)
// and GIVEHUB_* environment variables. Load validates the result, so a
// returned *Config is ready to use.
//
// Keep secrets out of the file. The Redis and MQTT passwords, the InfluxDB
// token and the service token secret all have environment overrides.
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//	lifetime := cfg.SessionLifetime()
package config
