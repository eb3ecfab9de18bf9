// Package resilience carries failure events raised at dispatch boundaries to
// whatever monitors them.
//
// The producer reports an Event whenever a dispatch ends in a timeout or an
// API failure. Reporting is fire-and-forget: a Sink must never block or fail
// the caller, so slow or remote sinks should be wrapped in a Dispatcher.
//
//	d := resilience.NewDispatcher(resilience.NewLogSink(logger), resilience.DispatcherOptions{})
//	defer d.Close(context.Background())
//
//	agent := producer.NewAgent(client, producer.Options{Sink: d})
package resilience
