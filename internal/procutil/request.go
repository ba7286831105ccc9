package procutil

import "encoding/json"

// lumperInitArg is the private argv[1] token (argv[0] is /proc/self/exe)
// that tells the self-reexec'd
// /proc/self/exe invocation "you are the child side of a Spawn, not a
// user-facing CLI invocation". cmd/lumper's main must check for this token
// before doing any flag parsing.
const lumperInitArg = "__lumper_init__"

// HookMarshaler is implemented by a PreExecHook that needs to carry state
// across the self-reexec boundary. Since self-reexec is a real execve, no
// Go heap object survives it; a hook's state must be serialized by the
// parent and reconstructed child-side by a DecodeHookFunc keyed on Kind.
type HookMarshaler interface {
	PreExecHook
	// HookKind identifies which DecodeHookFunc branch can reconstruct this
	// hook. internal/mountns uses "mountns.v1".
	HookKind() string
	// Marshal encodes the hook's configuration, not its runtime state.
	Marshal() ([]byte, error)
}

// DecodeHookFunc reconstructs a PreExecHook from the kind/data pair a
// HookMarshaler produced. internal/procutil has no dependency on
// internal/mountns; cmd/lumper supplies the concrete function.
type DecodeHookFunc func(kind string, data []byte) (PreExecHook, error)

// stdioSpec is the wire form of a StdioAction: only the fields needed to
// recreate parent-resolved stdio are sent, since *os.File values are
// already wired into the child's fd 0/1/2 by os/exec before exec and need
// no further action child-side. It exists mainly so InitRequest carries a
// complete, self-describing record for diagnostics and so a future
// child-side stdio step (e.g. setting O_NONBLOCK) has something to act on.
type stdioSpec struct {
	Kind stdioKind `json:"kind"`
	Dir  Direction `json:"dir"`
}

// initRequest is the JSON payload sent from parent to child over the
// config pipe (fd 4 in the child). It carries everything the child needs
// to reconstruct state that cannot cross a real execve: the target
// command, the hook to run before exec, and the detach flag.
type initRequest struct {
	Argv        []string     `json:"argv"`
	Env         []string     `json:"env,omitempty"`
	Stdio       [3]stdioSpec `json:"stdio"`
	Detach      bool         `json:"detach"`
	HookKind    string       `json:"hook_kind,omitempty"`
	PreExecData []byte       `json:"pre_exec_data,omitempty"`
	// ExtraFileCount is how many of opts.ExtraFiles were attached starting
	// at fd 5. A detach relay must re-open and re-attach the same count so
	// a hook's side channel (e.g. mountns's diagnostic pipe) survives the
	// second self-reexec at the same fd numbers.
	ExtraFileCount int `json:"extra_file_count,omitempty"`
}

func (r *initRequest) marshal() ([]byte, error) {
	return json.Marshal(r)
}

func unmarshalInitRequest(data []byte) (*initRequest, error) {
	var r initRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
