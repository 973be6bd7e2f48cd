// Package wardkeep provides in-process boundary enforcement for Go agent
// frameworks. It wraps tool functions and consults the sealed policy engine
// before every call, so cross-domain flows are blocked at a boundary the
// tool cannot bypass.
//
// Usage:
//
//	guard := wardkeep.New(engine)
//	copyNotes := guard.Wrap(doCopy,
//	    wardkeep.WithSource("work-kb"),
//	    wardkeep.WithDestination("personal-kb"),
//	    wardkeep.WithOperation("write"),
//	)
//	_, err := copyNotes(ctx, wardkeep.Flow{})
//	var blocked *wardkeep.BlockedError
//	if errors.As(err, &blocked) {
//	    // the engine recorded a violation; fn never ran
//	}
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/wardkeep/wardkeep/sdk/go/wardkeep.
package wardkeep
