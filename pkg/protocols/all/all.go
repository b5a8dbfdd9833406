// Package all is a convenience wrapper that registers all known protocol
// implementations. Importing this package enables discovery to match any
// supported glasses model.
package all

// Import each implementation package for its side-effects (the init()
// function).
import (
	_ "github.com/pickline/glasspick/pkg/protocols/g1"
	_ "github.com/pickline/glasspick/pkg/protocols/mock"
)
