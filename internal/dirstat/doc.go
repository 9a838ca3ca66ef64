// Package dirstat provides the file profiling engine used by checkpoint.
//
// It walks a directory tree using fastwalk for parallel traversal, counts and
// sizes files whose extension is in a tracked set, and keeps a bounded ranking
// of the largest tracked files seen. Memory used by the ranking is bounded by
// the requested limit regardless of how many files the tree holds.
package dirstat
