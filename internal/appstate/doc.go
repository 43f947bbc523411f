// Package appstate holds the observable connection state shown to users.
//
// A Model carries the current ConnectionState and a bounded History of
// received message payloads. Observers registered with Observe are called
// after every mutation with the Change that happened and a Snapshot taken
// right after it.
//
// Mutations are expected to come from a single goroutine (the session
// manager's event loop). Observers run on that goroutine, must not block,
// and must not call SetState, SetReceivedMessage or ClearData.
//
// Usage:
//
//	model := appstate.NewModel(200)
//	cancel := model.Observe(func(c appstate.Change, s appstate.Snapshot) {
//	    fmt.Println(c.Kind, s.State)
//	})
//	defer cancel()
package appstate
