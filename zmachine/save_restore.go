package zmachine

// doSave implements the save opcode (0OP:5 in v1-3, which branches on the
// result; 0OP:5 in v4 and EXT:0 in v5+, which store it). In v1-3 it always
// takes the failure branch and never emits a Save event, whether or not a
// save/restore channel is wired. In v4+, when the host hasn't wired up a
// save/restore channel (a headless script runner, a unit test) this
// falls back to reporting failure, the way the standard permits any
// interpreter to when it genuinely cannot perform a save. When a channel
// is wired, the host is responsible for actually persisting the bytes
// (it calls ExportSaveState itself once it sees the Save event, the way
// a UI writes a .qzl file) and replying with a SaveResponse;
// save_undo/restore_undo are the separate, always-available mechanism
// backed by InMemorySaveStateCache.
//
// The snapshot the host captures is taken before this instruction's own
// destination-variable byte is consumed, so that a later restore of it
// can re-decode that byte and store the standard's "2" (restore
// succeeded) into the right variable — see doRestore.
func (z *ZMachine) doSave(frame *CallStackFrame) error {
	if z.Core.Version <= 3 {
		return z.handleBranch(frame, false)
	}

	if z.saveRestoreChannel == nil {
		dest, err := z.readIncPC(frame)
		if err != nil {
			return err
		}
		return z.writeVariable(dest, 0, false)
	}

	z.outputChannel <- Save{}
	result := uint16(0)
	if resp, ok := (<-z.saveRestoreChannel).(SaveResponse); ok && resp.Success {
		result = 1
	}

	dest, err := z.readIncPC(frame)
	if err != nil {
		return err
	}
	return z.writeVariable(dest, result, false)
}

// doRestore is save's counterpart; like doSave it always reports failure
// (by branch) in v1-3. A successful restore replaces the
// entire machine state (dynamic memory and call stack) via
// ImportSaveState, the same mechanism restore_undo uses, so execution
// resumes wherever the snapshot was taken rather than continuing past
// this instruction.
func (z *ZMachine) doRestore(frame *CallStackFrame) error {
	if z.Core.Version <= 3 {
		return z.handleBranch(frame, false)
	}

	dest, err := z.readIncPC(frame)
	if err != nil {
		return err
	}
	if z.saveRestoreChannel == nil {
		return z.writeVariable(dest, 0, false)
	}

	z.outputChannel <- Restore{}
	resp, ok := (<-z.saveRestoreChannel).(RestoreResponse)
	if !ok || !resp.Success {
		return z.writeVariable(dest, 0, false)
	}

	applied, err := z.ImportSaveState(resp.Data)
	if err != nil {
		return err
	}
	if !applied {
		return z.writeVariable(dest, 0, false)
	}

	// The restored frame's pc sits exactly at the original save's own
	// destination byte (never consumed before that snapshot was taken);
	// reading it now finds the right variable to report success into.
	newFrame, err := z.callStack.peek()
	if err != nil {
		return err
	}
	restoredDest, err := z.readIncPC(newFrame)
	if err != nil {
		return err
	}
	return z.writeVariable2(newFrame, restoredDest, 2)
}

// writeVariable2 is writeVariable against a caller-supplied frame rather
// than the live top-of-stack frame: once ImportSaveState swaps the call
// stack out from under doRestore, the destination variable must resolve
// against the newly-restored frame, not whatever frame was current a
// moment ago.
func (z *ZMachine) writeVariable2(frame *CallStackFrame, variable uint8, value uint16) error {
	switch {
	case variable == 0:
		return frame.push(value)
	case variable < 16:
		return frame.setLocal(variable, value)
	default:
		return z.Core.WriteWord(uint32(z.Core.GlobalVariableBase+2*(uint16(variable)-16)), value)
	}
}
