// Package interp implements the Buildfile language: a small s-expression
// interpreter with string interpolation and a table of builtin functions.
//
// A program is a tree of tokens. A list token is a function call whose
// first element names the function; a string token is expanded, with $name
// and ${name} references replaced by variable values. A reference to a list
// variable fans out into one result per element, so a string holding two
// list references of lengths M and N expands to M×N strings.
//
// Values are strings, booleans, integers or Lists of values. Functions
// coerce between them with four rules:
//
//	booleanize  an empty list, "", "false" and "0" are false
//	integerize  a list is its length; a string is its leading integer
//	scalarize   booleans spell "true" or "false"; a list is its length
//	vectorize   a string that booleanizes false is the empty list
//
// The build system extends an Interpreter with its own functions through
// Register.
package interp
