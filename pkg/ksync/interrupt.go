package ksync

// InterruptContext is proof, passed explicitly by the caller, that a call is
// being made from interrupt context. The blocking methods of every
// primitive simply don't accept one: only the *FromISR methods do, and
// those never block.
type InterruptContext struct{ _ byte }

// ISR wraps the body of a simulated interrupt handler, handing it the token
// needed to call the *FromISR primitives. Drivers' interrupt handlers are
// the only legitimate caller of this function.
func ISR(body func(ictx InterruptContext)) {
	body(InterruptContext{})
}
