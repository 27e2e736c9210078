// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	FieldRequestID = "request_id"
	FieldCheckID   = "check_id"
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldResource  = "resource"
)
