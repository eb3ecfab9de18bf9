// Package producer dispatches subtasks to council workers through the broker
// and waits, bounded by a timeout, for their responses.
//
// Agent.Execute never returns an error. Every fault is turned into a failure
// Response (success=false, confidence 0, CRITICAL risk) and reported to a
// resilience.Sink, so callers can treat dispatch like any other execution
// agent:
//
//	agent := producer.NewAgent(client, producer.Options{
//	    Timeout: 2 * time.Minute,
//	    Sink:    resilience.NewLogSink(logger),
//	})
//	resp := agent.Execute(ctx, subtask, llm.NewModel("gpt-4"))
//	if resp.Failed() {
//	    log.Printf("dispatch failed: %s", resp.ErrorMessage)
//	}
//
// Execute performs exactly one push and at most one blocking wait. It does
// not retry; retry policy belongs to the caller.
package producer
