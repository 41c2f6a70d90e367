//go:build !displaydebug

package display

const debugAssertions = false
