// Package model defines the conversation types shared across coven-playground.
//
// Message and Session are owned by the conversation store; the stream decoder
// and the API client produce the tool call, media, and reasoning types that
// are merged into them.
//
// Target selection follows a fixed priority when more than one id is set:
//
//	team > agent > workflow
package model
