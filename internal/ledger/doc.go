/*
Ledger implements the bank reserve and per-identity accounts.

# Module
  - engine: runs one operation as one atomic store unit and emits its notification
  - account: deposit, withdraw, balance check
  - stake: stake and unstake with tick-based rewards
  - loan: collateralized borrow and repay with time-based interest
  - admin: bank initialization, status toggle, reserve top-up
  - dispatch: named operations for the request socket

# Source
 1. requests from bankd
 2. direct calls from tests and tools

# Produce
  - notifications to the configured sink

# Sharded
  - none, records are locked per identity with the bank last
*/
package ledger
