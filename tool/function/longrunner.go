//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package function

// LongRunner is implemented by tools whose result is not expected
// synchronously. When such a tool returns nil, no function response event is
// emitted; the caller observes the outcome through a later message instead.
type LongRunner interface {
	// LongRunning returns true if the operation is expected to run for a long time.
	LongRunning() bool
}
