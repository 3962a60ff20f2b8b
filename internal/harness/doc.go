// Package harness runs YAML mint scenarios against a scripted wallet.
//
// A scenario pins down one mint attempt: the selection, what the wallet
// answers at each step, and the expected outcome. The harness drives a real
// mint.Minter and records the ordered wallet calls as the trace, so
// scenarios check ordering guarantees (no submission on the wrong network,
// no wallet contact without a selection) as well as the final result.
//
// # Scenario Format
//
//	name: wrong_network
//	description: "A wallet on mainnet never reaches submission"
//	selection:
//	  address: "1 Market St, San Francisco"
//	  lat: 37.7749
//	  lng: -122.4194
//	wallet:
//	  chain_id: 1
//	expect:
//	  category: wrong_network
//	assertions:
//	  - type: trace_count
//	    call: SendTransaction
//	    count: 0
//
// Omitting selection runs the attempt with no selection; omitting wallet
// runs it with no wallet capability. Wallet fields default to a Sepolia
// wallet that authorizes one account and mints token 1.
//
// # Assertion Types
//
//   - trace_contains: the call appears in the trace
//   - trace_order: the calls appear in this relative order
//   - trace_count: the call appears exactly N times
//   - notice: the user-facing notice equals message
//
// # Golden Snapshots
//
// RunWithGolden serializes the trace as canonical JSON (sorted keys, NFC
// strings, no floats) and compares it against testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
