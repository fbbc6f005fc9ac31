package domain

import "fmt"

// ConfigurationError marks a destination or connection that is missing
// required parameters.
type ConfigurationError struct {
	Subject string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Subject, e.Reason)
}

// TransferError wraps a failed push or fetch against one destination.
type TransferError struct {
	Backend  string
	Op       string // "push", "fetch", "list", "delete"
	FolderID string
	Err      error
}

func (e *TransferError) Error() string {
	if e.FolderID != "" {
		return fmt.Sprintf("%s %s on %s failed: %v", e.Op, e.FolderID, e.Backend, e.Err)
	}
	return fmt.Sprintf("%s on %s failed: %v", e.Op, e.Backend, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// IntegrityError reports artifacts that failed to decompress. Interactive
// restores may proceed past it; automated restores treat it as fatal.
type IntegrityError struct {
	FolderID  string
	Corrupted []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for folder %s: %d corrupted artifact(s): %v",
		e.FolderID, len(e.Corrupted), e.Corrupted)
}

// ConnectionError marks an unreachable target server.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to server %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// EngineError wraps a non-zero exit from the dump/restore engine.
type EngineError struct {
	Command string
	Detail  string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Command, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
