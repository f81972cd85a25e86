// Package townylog is the entry point of the logging subsystem.
//
// A Logger owns three channels:
//
//   - main: towny.log plus console and host log mirrors at INFO and above
//   - money: money.csv, the economic audit trail, never filtered and never
//     mirrored to the console
//   - debug: debug.log plus the same mirrors as main, toggled at runtime
//
// Lifecycle:
//
//	Uninitialized --Initialize--> Ready(debug off) <--Enable/Disable--> Ready(debug on)
//	Ready --Close--> Closed
//
// Every administrative change is followed by exactly one Commit of the
// routing table. Emits load the published table atomically and never take
// the administrative lock, so they are safe from any number of goroutines.
//
// Logging never fails the caller. Sink write errors are reported to the
// main channel (unless main itself failed) and to the diagnostic logger,
// then dropped.
//
// Usage:
//
//	tl := townylog.New(townylog.SettingsFrom(cfg), townylog.WithLogger(logger))
//	if err := tl.Initialize(); err != nil {
//	    return err
//	}
//	defer tl.Close()
//
//	tl.Main().Info("Town created", "town", "X")
//	tl.LogMoneyTransaction(nil, 50, money.Town("X"), "")
package townylog
