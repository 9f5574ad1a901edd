// Package fetch retrieves remote JSON documents for the inliner.
//
// # Retry Policy
//
// Each attempt gets its own deadline (Request.Timeout). A response with a
// 5xx status, a transport failure or an attempt timeout is retried while
// Request.Retries allows, so a persistently failing server sees exactly
// Retries+1 requests. Any other non-2xx status and any body that is not
// valid JSON fail immediately.
//
// Retries are immediate unless Request.Delay is set, in which case the wait
// doubles after every failure and is capped at 30 seconds.
//
// # Errors
//
// Every failure is an *Error carrying its Kind, the status code, the number
// of attempts made and whether an attempt deadline fired. errors.Is matches
// ErrHTTPStatus, ErrNetwork and ErrParse.
//
// # Encoding
//
// Bodies are transcoded to UTF-8 when Content-Type declares another charset
// and are returned as compact JSON, ready to be written or inlined verbatim.
package fetch
