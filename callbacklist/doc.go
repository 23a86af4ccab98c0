// Package callbacklist implements an ordered, mutation-safe list of
// callbacks. Append, Prepend, Insert and Remove may run concurrently with
// each other and with iteration; a callback appended after an iteration
// begins is never observed by that iteration, and a callback removed
// before an iterator reaches it is never invoked by that iteration.
package callbacklist
