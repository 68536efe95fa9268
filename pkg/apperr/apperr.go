package apperr

import (
	"errors"
	"fmt"
)

const (
	MetaReason   = "reason"
	MetaStage    = "stage"
	MetaField    = "field"
	MetaChatID   = "chat_id"
	MetaDay      = "day"
	MetaSlot     = "slot"
	MetaSelector = "selector"
	MetaURL      = "url"

	StageLaunch     = "launch"
	StageNavigation = "navigation"
	StageResource   = "resource"
	StageDate       = "date"
	StageTimeSlots  = "time_slots"
	StageSlotClick  = "slot_click"
	StageForm       = "form"
	StageSubmit     = "submit"
	StageRelease    = "release"

	CodeInternal         = "internal"
	CodeInvalidArgument  = "invalid_argument"
	CodeTimeout          = "timeout"
	CodeBrowserLaunch    = "browser_launch"
	CodeBrowserNotReady  = "browser_not_ready"
	CodePermission       = "permission"
	CodeNavigation       = "navigation_failed"
	CodeResourceNotFound = "resource_not_found"
	CodeDateNotFound     = "date_not_found"
	CodeDateUnavailable  = "date_unavailable"
	CodeTimeSlotLoad     = "time_slot_load"
	CodeSubmitFailed     = "submit_failed"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

func WrapWithReason(op, code string, err error, reason string) error {
	return Wrap(op, code, err, map[string]any{
		MetaReason: reason,
	})
}

func WrapErrorWithReason(op, code, reason string) error {
	return Wrap(op, code, errors.New(reason), map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeInvalidArgument, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
	})
}

// Code extracts the classification code from an error produced by this
// package; unknown errors map to CodeInternal.
func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return CodeInternal
}
