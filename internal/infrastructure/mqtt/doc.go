// Package mqtt publishes Givehub work for out-of-process workers.
//
// The auth subsystem never sends email or push notifications itself.
// Password reset notices and auth events go to the broker and whichever
// worker owns delivery picks them up:
//
//	givehub → broker → mailer / push / audit workers
//
// The client is publish-only. It reconnects automatically and keeps a
// retained online/offline status (with a matching will) on
// {prefix}/system/status.
//
//	client, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().PasswordReset(), notice)
//
// Enable broker.tls for anything not on localhost; payloads carry reset
// links and are only protected by the transport.
package mqtt
