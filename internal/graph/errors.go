package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyGraph is returned when a definition has no nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")
	// ErrDuplicateNode is returned when two nodes share an ID.
	ErrDuplicateNode = errors.New("duplicate node")
	// ErrUnknownNode is returned when an edge, entry or result names a missing node.
	ErrUnknownNode = errors.New("unknown node")
	// ErrInvalidEntry is returned when an entry node has inbound edges.
	ErrInvalidEntry = errors.New("entry node has inbound edges")
	// ErrCycleDetected is returned when the edges form a cycle, including self edges.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrTypeMismatch is returned when a consumer accepts none of the kinds its producer emits.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnreachableNode is returned when a node cannot be reached from any entry.
	ErrUnreachableNode = errors.New("unreachable node")
)

// Error is a compile failure. Code is one of the sentinels above and is
// matched with errors.Is.
type Error struct {
	Code   error
	Node   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Code.Error()
	if e.Node != "" {
		msg = fmt.Sprintf("%s: node '%s'", msg, e.Node)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Code}
	}
	return []error{e.Code, e.Err}
}

func compileErr(code error, nodeID, format string, args ...any) *Error {
	return &Error{Code: code, Node: nodeID, Detail: fmt.Sprintf(format, args...)}
}
