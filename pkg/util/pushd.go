// Package util holds the small filesystem helpers the CLI front end shares.
package util

import "os"

// Pushd switches the process working directory to root and returns a restore
// function, so entry specifiers given relative to a project root resolve the
// same way no matter where the tool was invoked from.
func Pushd(root string) (func(), error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := os.Chdir(root); err != nil {
		return nil, err
	}
	return func() {
		if err := os.Chdir(wd); err != nil {
			panic(err)
		}
	}, nil
}
