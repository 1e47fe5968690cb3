/*
Package rootbloom provides a probabilistic prefilter over a journal's set of
known Merkle roots.

It is adapted from the forestrie massif index's 4-way Bloom primitives: the
same double-hashing scheme and LSB0 bit numbering, but without their
fixed-header layout, and narrowed to a single in-memory filter over 32-byte
keccak-256 root hashes rather than four parallel filters over a mmap'd
index region.

# What this buys Journal.HasRoot

Root membership is already answerable exactly from the journal's roots map,
but that map can grow to hold every root the system has ever produced.
Journal.HasRoot asks the filter first:

  - "definitely not present" answers false without touching the map.
  - "maybe present" falls through to the authoritative map.

HasRoot's one real caller is cmd/logproof-verify, which uses it to check
the "every sealed root_hash is a member of roots" invariant for each
history entry it verifies.

This is an optimization only. The filter is rebuilt from the roots map on
journal load and is never itself persisted to the journal's JSON file, so it
never participates in the round-trip contract described in the journal
package.
*/
package rootbloom
