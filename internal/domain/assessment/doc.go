// Package assessment contains the domain model for the marks lifecycle:
// the per-student/per-subject assessment record, its status machine, the
// scoring rules, and the contracts this core expects from its collaborators
// (record store, reviewer directory).
//
// The lifecycle:
//
//	draft ──submit──► submitted ──approve-publish──► published
//	  ▲                   │
//	  └──────reject───────┘  (with a mandatory comment)
//
// A subject teacher authors and submits records for their own subject; the
// class teacher for the record's class+section rejects or approve-publishes
// them per student across all subjects at once. Published is terminal within
// this subsystem.
//
// This package is pure: expected failures (range violations, illegal
// transitions) are values, and nothing here touches storage or transport.
// The effectful half of the state machine lives in application/workflow.
package assessment
