// Package fault provides the error taxonomy used throughout tapestry.
//
// Every domain failure is an *Error: a kind tag (syntax error, build error,
// ...) plus a bag of named details, a fatal flag and a suggested process
// return code. A Set buffers non-fatal errors up to a tolerance and reports
// itself as the active failure once it is full or holds a fatal error.
//
// Report renders errors for people, ordering keys the same way for every
// error: error class, details, the error's own key order, the remaining keys
// alphabetically, and finally the provenance of the offending token.
package fault
