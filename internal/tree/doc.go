// Package tree implements the hierarchical size tree filled by the crawler.
//
// Nodes live in a chunked arena and are addressed by dense core.ID values.
// Chunks never move once allocated, so a node's address is stable for the
// lifetime of the tree. Insertion takes only the parent's child-list lock;
// size propagation to the ancestors is a chain of atomic adds, one per
// ancestor, so workers filling disjoint subtrees never contend on a global
// lock and a reader never observes a half-written aggregate.
//
// There is no removal. A new scan builds a new Tree.
package tree
