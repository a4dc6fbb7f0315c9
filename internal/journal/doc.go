/*
Journal records ledger notifications in an append-only segmented log.

# Module
  - writer: framed, checksummed records with size and age based rotation
  - reader: sequential decoding of a segment file or a forwarded stream
  - replay: ordered segment playback with filters and pacing

# Source
  - notifications from the ledger engine via notify.Journal

# Produce
  - none

# Sharded
  - none
*/
package journal
