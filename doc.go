// Package libemit is an in-process event emitter with tiered listeners,
// sequential dispatch, cancellable payloads and an error channel.
//
// # Registering listeners
//
// Listeners belong to one of three tiers. For a given event name, Early
// listeners run first (the most recently prepended one leading), Active
// listeners next and Passive listeners last, each of the latter two in
// registration order, no matter how the calls were interleaved:
//
//	em := libemit.New()
//	em.AddPassiveListener("saved", audit)
//	em.On("saved", persist)
//	em.PrependListener("saved", validate)
//	// dispatch order: validate, persist, audit
//
// Listeners are compared by pointer. Registering the same *Listener twice
// creates two entries and Off removes one of them per call.
//
// # Emitting
//
// Emit calls every listener of an event one after the other and reports
// whether there was any:
//
//	ok, err := em.Emit(ctx, "saved", doc)
//
// When the first argument is a cancellable *Signal (or embeds one), a
// listener may call Cancel on it to skip every listener after it.
//
// # Errors
//
// A listener error stops the emission and is returned by Emit, unless the
// emitter has listeners on "error": then the error is emitted there in the
// background and the emission carries on. Panics are recovered into
// *PanicError and follow the same path.
//
// # Lifecycle events
//
// Every registration emits "newListener" and every removal emits
// "removeListener", both with the event name and the listener.
//
// # Hosts
//
// Types gain emitter behavior by embedding *Emitter and calling Bind, as
// SocketClient does to publish the lifecycle of a websocket connection.
package libemit
