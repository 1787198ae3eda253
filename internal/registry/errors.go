package registry

import "errors"

// Domain errors for the registry package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, registry.ErrPersistence) {
//	    // the mutation was rolled back; in-memory state is unchanged
//	}
var (
	// ErrDuplicateController is returned when registering an address that is already registered.
	ErrDuplicateController = errors.New("registry: controller already registered")

	// ErrNotFound is returned when a controller or macro does not exist.
	ErrNotFound = errors.New("registry: not found")

	// ErrInvalidUnit is returned when a scan unit number is outside 1..UnitCount.
	ErrInvalidUnit = errors.New("registry: invalid scan unit")

	// ErrInvalidController is returned when controller fields fail validation.
	ErrInvalidController = errors.New("registry: invalid controller")

	// ErrInvalidMacro is returned when a macro name or configuration is invalid.
	ErrInvalidMacro = errors.New("registry: invalid macro")

	// ErrMacroExists is returned when renaming onto a macro name already in use.
	ErrMacroExists = errors.New("registry: macro already exists")

	// ErrPersistence is returned when the storage collaborator fails to save.
	// The triggering mutation has been rolled back.
	ErrPersistence = errors.New("registry: persistence failed")
)
