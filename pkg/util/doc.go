// Package util provides small helpers shared by the logging and history
// code: capping frames and strings before they are rendered.
package util
