// Package harness runs scripted scenarios against raster files.
//
// A scenario is a YAML file naming a session, a seed and a list of steps:
// append measurements, replace annotations, repoint references or migrate.
// Each step either succeeds or fails with an expected error code. After the
// last step the file is read back and summarized without uuids, timestamps
// or signal samples, so the summary of a run is stable and can be compared
// against a golden snapshot.
//
// Scenario format:
//
//	name: lineage_round_trip
//	seed: 7
//	steps:
//	  - append:
//	      - {label: ref, variant: reference}
//	      - {label: s, variant: sample, reference: ref, stitched: 3}
//	  - set_reference: {pulses: [s], ref: ghost}
//	    expect_error: NOT_FOUND
//	assertions:
//	  - {type: lineage, label: s, lineage: "stitch[3]"}
//	  - {type: step_error, step: 1, code: NOT_FOUND}
//
// Determinism comes from testutil: a seeded uuid stream and a millisecond
// clock feed the devtools generator that builds every trace.
//
// Golden files live in testdata/golden/{name}.golden. RunWithGolden compares
// through goldie in tests; CompareGolden does the same for the test command.
package harness
