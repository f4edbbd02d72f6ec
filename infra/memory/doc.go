// Package memory provides typed object pools whose objects are handed out
// as shared pointers. An object goes back to its pool when the last owner
// releases it, so it can be passed between goroutines without anyone
// having to decide who returns it.
package memory
