/*
Package testutil provides shared helpers for tests across the project.

# Overview

The helpers cover the infrastructure most package tests need so that each
package does not grow its own copy: contexts that expire with the test,
polling for asynchronous conditions, draining event subscriptions, and JSON
round-trips for fixture data.

# Core helpers

  - Context helpers: TestContext, TestContextWithTimeout and
    CancelledContext register cleanup automatically so tests cannot leak
    their contexts.
  - Async helpers: WaitFor polls a condition until it holds or the timeout
    passes; WaitForChannel and WaitForEvent receive from a channel with a
    deadline.
  - Event helpers: DrainEvents, CollectChunks and CollectText empty a
    buffered event subscription without blocking, which is how tests read
    back what a run published.
  - Data helpers: MustJSON and MustParseJSON build fixture payloads without
    error plumbing.

# Subpackages

  - testutil/mocks: scriptable fakes, including MockProvider for the
    completion provider interface and MockWorker for conversational workers.
    Both support builder-style configuration and error injection.
  - testutil/fixtures: factories for worker profiles and for the structured
    analysis replies the routing components parse.
*/
package testutil
