// Package stream reads a playground run response.
//
// # Pipeline
//
// A run response is a chunked body of newline-delimited JSON records. Three
// stages turn it into typed events:
//
//	body, err := stream.Open(ctx, httpClient, req)   // transport
//	split := stream.NewSplitter(body, logger)        // framing
//	for {
//	    rec, err := split.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ev := stream.Decode(rec)                      // decoding
//	}
//
// Open fails with *TransportError when the server answers with a non-2xx
// status. Body.Next returns *TransportError if the connection drops.
//
// # Framing
//
// The splitter keeps a carry-over buffer and tracks brace depth and string
// state, so an object split across network reads is emitted only once it is
// complete. When the body ends, a trailing remainder is emitted only if it is
// valid JSON; truncated data is dropped without an error.
//
// # Decoding
//
// Decode never fails. A record that is not valid JSON becomes a KindText
// event carrying the raw text, and an unrecognized event kind becomes
// KindUnknown.
package stream
