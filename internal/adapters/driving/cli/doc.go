// Package cli provides the cobra command tree of wikisync.
//
// Commands call the driving ports only. The services behind them are built
// by a Bootstrap function installed by the entrypoint, or set directly in tests.
package cli
