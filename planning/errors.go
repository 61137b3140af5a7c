package planning

import "errors"

// Domain errors. Callers match them with errors.Is.
var (
	ErrGoalNotFound       = errors.New("goal not found")
	ErrActivePlanNotFound = errors.New("active plan not found")
	ErrTargetDateMissing  = errors.New("plan target date is required")
	ErrValidation         = errors.New("task plan validation failed")
)
