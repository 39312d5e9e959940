// Package ledger decodes the daemon's ledger actions and executes them
// against wallet capabilities.
//
// A ledger action arrives as an Envelope ({type, payload}). The Dispatcher
// checks the network first, then decodes the payload into one of the closed
// set of Action variants and runs it. Variants carrying a minimum time wait
// for the chain (median time) or the wall clock (block timestamp plus a
// safety buffer) before touching the ledger.
//
// The dispatcher never retries a ledger operation. Retry policy, if any,
// belongs to the wallet's RPC client.
package ledger
