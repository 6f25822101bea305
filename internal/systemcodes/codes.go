package systemcodes

const (
	ErrorCodeGeneric = 1
	ErrorCodeConfig  = 2
	// ErrorCodeAuth asks the user to re-run `prdash init` with valid credentials.
	ErrorCodeAuth = 3
)
