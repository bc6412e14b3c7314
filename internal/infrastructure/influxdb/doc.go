// Package influxdb records Givehub auth activity as time series.
//
// Each auth outcome (login, failed login, logout, logout-all, reset) is
// queued as a point in the auth_events measurement. Dashboards use it to
// spot credential stuffing and unusual revoke-all spikes.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthEvent("login_failed", "mobile", "", time.Now())
package influxdb
