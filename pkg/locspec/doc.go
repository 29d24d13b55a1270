// Package locspec implements code to parse a string into a specific
// location specification.
//
// Location spec examples:
//
// locStr ::= <symbol>[(+|-)<hex offset>] | pc[(+|-)<hex offset>] | <address> | *<address> | /<regex>/ | (+|-)<offset>
// * <symbol> is the name of an entry of the symbol map
// * pc is the current program counter
// * <address> is a hexadecimal number, with or without the 0x prefix; a symbol with the same name takes precedence unless the * form is used
// * /<regex>/ will return a location for each function matched by regex
// * +<offset> returns the location <offset> instructions after the program counter
// * -<offset> returns the location <offset> instructions before the program counter
package locspec
