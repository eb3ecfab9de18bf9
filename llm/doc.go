// Package llm defines the execution boundary between council workers and the
// models that answer subtasks.
//
// This package provides:
//   - Model, the execution target a subtask is addressed to
//   - Executor, the external layer that runs a subtask against a model
//   - Resolver, which turns a wire model_id into a Model
//   - CompletionExecutor, an Executor backed by a chat completion provider
//   - UsageTracker, per-model request, token and cost totals
//
// # Resolving Models
//
// A worker resolves model ids from its locally loaded models first and then
// from a shared registry:
//
//	resolver := llm.NewResolver(
//	    llm.NewLocalModels(llm.NewModel("gpt-4"), llm.NewModel("claude-3")),
//	    llm.RegistryLookup{Registry: etcdRegistry},
//	)
//	model, err := resolver.Resolve(ctx, "gpt-4")
//	if errors.Is(err, council.ErrModelNotFound) {
//	    // respond with a failure instead of executing
//	}
//
// # Completion Executor
//
// CompletionExecutor sends the subtask content as a single user message:
//
//	exec := &llm.CompletionExecutor{
//	    Completer:    providerClient,
//	    SystemPrompt: "Answer precisely.",
//	    Options:      []llm.CompletionOption{llm.WithMaxTokens(1000)},
//	}
//
// # Usage Tracking
//
//	tracker := llm.NewUsageTracker()
//	tracker.Record(response)
//	fmt.Printf("tokens used by gpt-4: %d\n", tracker.ByModel("gpt-4").Tokens)
package llm
