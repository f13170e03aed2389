// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

// Route computes the next node from the merged state. It is a pure
// function and the only routing rule in the engine, applied uniformly
// after every step: a present final answer terminates the run; otherwise
// control goes to whichever role the last step selected.
func Route(state *SessionState) RoleID {
	if state.Terminated() {
		return RoleTerminal
	}
	return state.CurrentRole
}
