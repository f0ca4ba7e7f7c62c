/*
File Name:  Exit.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package node

// Status codes returned by LoadConfig and Init. Anything other than
// StatusSuccess indicates the caller should not proceed.
const (
	StatusUnknownError = 0 // Unknown error checking the config file.
	StatusConfigRead   = 1 // Error reading the config file.
	StatusConfigParse  = 2 // Error parsing the config file.
	StatusLogInit      = 3 // Error initializing the log file.
	StatusListenError  = 4 // Error binding the UDP listen socket. Not returned by Init; Listen and Connect report bind failures as an error.
	StatusCacheBackend = 5 // Error opening the configured durable cache backend.
	StatusSuccess      = 6
)

// ExitGraceful marks a deliberate, non-error shutdown. It is not a status
// code above; it exists for callers that want a single sentinel for
// "the node closed because it was asked to."
const ExitGraceful = -1
