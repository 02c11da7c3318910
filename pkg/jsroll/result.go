package jsroll

import "github.com/coldog/jsroll/internal/bundle"

// GenerateResult is the value Generate and Write return: the finalized
// output bundle, ordered entry-chunks-first, then secondary chunks, then
// assets.
type GenerateResult struct {
	Bundle *bundle.Bundle
}

// Code is a legacy accessor kept only to catch callers still expecting the
// old two-field { code, map } return shape a single-chunk build used to
// return directly. Go has no throwing property getter, so the deprecation
// diagnostic is a documented panic.
func (r *GenerateResult) Code() string {
	panic("jsroll: GenerateResult.Code is deprecated; read Bundle.Ordered() chunk entries instead")
}

// Map is Code's source-map counterpart; see Code for why this panics.
func (r *GenerateResult) Map() string {
	panic("jsroll: GenerateResult.Map is deprecated; read Bundle.Ordered() chunk entries instead")
}
