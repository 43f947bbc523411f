// Package session manages the single MQTT broker session behind the
// virtual doorbell.
//
// A Manager owns the broker client, turns broker lifecycle events into
// appstate.Model updates, and persists the broker host and credentials
// in a settings.Store.
//
// # Event ordering
//
// Broker callbacks arrive on arbitrary goroutines. Every state change,
// whether it comes from a callback or from Connect/Disconnect, runs on one
// event-loop goroutine owned by the Manager, so model observers see
// changes in the order they were applied. Observers must not call
// mutating Manager methods.
//
// Each Configure replaces the broker client and starts a new generation;
// events still arriving from an older client are dropped.
//
// # State machine
//
//	connect ack accepted → Connected (status message published)
//	connect ack refused  → Disconnected
//	subscribe ack        → ConnectedSubscribed
//	unsubscribe ack      → ConnectedUnsubscribed (history cleared)
//	message              → payload appended to history
//	disconnect           → Disconnected
//
// # Usage
//
//	m, err := session.New(session.Deps{
//	    MQTT:   cfg.MQTT,
//	    Dialer: session.PahoDialer(logger),
//	    Store:  settings.NewSQLiteStore(db.DB),
//	    Model:  appstate.NewModel(cfg.History.MaxEntries),
//	    Logger: logger,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	m.Configure(ctx, session.Config{Identifier: "dev1", Host: "broker.local"})
//	if err := m.ConnectWait(ctx); err != nil {
//	    // session.ErrConnectFailed
//	}
//	m.Subscribe("doorbell/events")
package session
