// Package classify maps free-text queries to an entity kind using
// shape heuristics. Classification is pure and total: any input maps
// to a kind, unrecognized input to KindUnknown.
package classify
