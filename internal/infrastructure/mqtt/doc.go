// Package mqtt adapts the Eclipse Paho MQTT client to chimed's session
// model.
//
// This package manages:
//   - Building paho options (client id, credentials, last will, keep-alive)
//   - Issuing connect, subscribe, unsubscribe and publish requests without blocking
//   - Reporting each outcome to an EventHandler, one method per lifecycle event
//   - Topic validation for subscription filters and publish topics
//
// # Architecture
//
// The session manager owns one Client per configured broker and receives
// its events through the EventHandler interface:
//
//	session.Manager → mqtt.Client → paho → broker
//	session.Manager ← EventHandler ← paho callbacks / token completion
//
// # Security Considerations
//
//   - Connections are plain TCP on port 1883; TLS is not configured
//   - Credentials are sent only when a username is set
//   - Passwords are never logged
//
// # Usage
//
//	opts := mqtt.BaseOptions(cfg.MQTT)
//	opts.ClientID = mqtt.ClientID("chime", "dev1", os.Getpid())
//	opts.Host = "broker.local"
//
//	client := mqtt.NewClient(opts, handler)
//	if !client.Connect() {
//	    // no usable broker address
//	}
//	client.Subscribe("doorbell/events", 1) // handler.OnSubscribeAck follows
package mqtt
