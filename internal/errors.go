package internal

import "errors"

// Warning is an error whose condition is benign: commands report it but exit
// zero. Deploys that change nothing return one instead of failing.
type Warning string

func (warning Warning) Error() string { return string(warning) }

func (Warning) Is(err error) bool {
	_, ok := err.(Warning)
	return ok
}

func IsWarning(err error) bool {
	return errors.Is(err, Warning(""))
}
